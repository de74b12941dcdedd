package bridge

// WithClock replaces the clock used for the force-fetch window and for
// checking stored tokens.
var WithClock = withClock
