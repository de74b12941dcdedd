package link

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
)

// Error messages and codes a server uses to answer a hash it does not know.
const (
	PersistedQueryNotFound     = "PersistedQueryNotFound"
	PersistedQueryNotSupported = "PersistedQueryNotSupported"

	codePersistedQueryNotFound     = "PERSISTED_QUERY_NOT_FOUND"
	codePersistedQueryNotSupported = "PERSISTED_QUERY_NOT_SUPPORTED"
)

// PersistedQueryOptions configures automatic persisted queries.
type PersistedQueryOptions struct {
	// UseGETForHashedQueries sends hash-only query requests as GET so CDNs
	// can cache them. When false the hashed attempt is forced to POST. The
	// full-query retry falls back to whatever method the operation carried.
	UseGETForHashedQueries bool

	// Hash defaults to SHA256Hex.
	Hash func(query string) string
}

// PersistedQueryLink replaces the query text with its hash and falls back
// to sending the full document when the server has not seen it yet.
type PersistedQueryLink struct {
	opts      PersistedQueryOptions
	supported atomic.Bool

	mu     sync.Mutex
	hashes map[string]string
}

func NewPersistedQueryLink(opts PersistedQueryOptions) *PersistedQueryLink {
	if opts.Hash == nil {
		opts.Hash = SHA256Hex
	}
	l := &PersistedQueryLink{opts: opts, hashes: map[string]string{}}
	l.supported.Store(true)
	return l
}

// SHA256Hex is the hash the APQ protocol mandates.
func SHA256Hex(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

// HashFor returns the memoised hash of query.
func (l *PersistedQueryLink) HashFor(query string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.hashes[query]; ok {
		return h
	}
	h := l.opts.Hash(query)
	l.hashes[query] = h
	return h
}

// Supported reports whether the server has not yet rejected persisted
// queries outright.
func (l *PersistedQueryLink) Supported() bool { return l.supported.Load() }

func (l *PersistedQueryLink) Request(ctx context.Context, op *Operation, forward NextLink) (Stream, error) {
	if !l.supported.Load() || op.Query == "" {
		return forward(ctx, op)
	}

	if op.Extensions == nil {
		op.Extensions = map[string]any{}
	}
	op.Extensions["persistedQuery"] = map[string]any{
		"version":    1,
		"sha256Hash": l.HashFor(op.Query),
	}
	op.Fetch.IncludeExtensions = true
	op.Fetch.OmitQuery = true

	method := op.Fetch.Method
	if l.opts.UseGETForHashedQueries && op.Type() == Query {
		op.Fetch.Method = http.MethodGet
	} else {
		op.Fetch.Method = http.MethodPost
	}

	s, err := forward(ctx, op)
	if err == nil && op.Type() == Subscription {
		return s, nil
	}

	var res *Result
	if err == nil {
		res, err = First(ctx, s)
	}

	retry, unsupported := l.shouldRetry(res, err)
	if !retry {
		if err != nil {
			return nil, err
		}
		return Single(res), nil
	}
	if unsupported {
		l.supported.Store(false)
		delete(op.Extensions, "persistedQuery")
	}

	op.Fetch.OmitQuery = false
	op.Fetch.Method = method
	return forward(ctx, op)
}

// shouldRetry inspects the hashed attempt. retry is true when the full query
// should be sent; unsupported is true when the server does not do APQ at all.
func (l *PersistedQueryLink) shouldRetry(res *Result, err error) (retry, unsupported bool) {
	var errs GraphQLErrors
	if res != nil {
		errs = res.Errors
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		if serverErr.Result != nil {
			errs = serverErr.Result.Errors
		}
		// Some servers answer an unknown hash with a bare 400 or 500.
		if len(errs) == 0 && (serverErr.StatusCode == http.StatusBadRequest ||
			serverErr.StatusCode == http.StatusInternalServerError) {
			return true, true
		}
	}

	for _, e := range errs {
		switch {
		case e.Message == PersistedQueryNotSupported || e.Code() == codePersistedQueryNotSupported:
			return true, true
		case e.Message == PersistedQueryNotFound || e.Code() == codePersistedQueryNotFound:
			retry = true
		}
	}
	return retry, false
}
