// Package envoverride replaces configured scalars with values taken from
// environment variables named {PREFIX}__{SUFFIX}.
//
// Names are matched case-insensitively against every variable in the
// environment. Exactly one match with a parsable, non-empty value replaces the
// configured value; anything else keeps it and, where something did match, logs
// a warning. Overrides never fail.
//
//	attempts := envoverride.Override(envoverride.OS(), log, uint(5), "MY_SERVICE", envoverride.StopAttempts)
//	// MY_SERVICE__STOP__ATTEMPTS=7 -> 7
//	// my_service__stop__attempts=7 -> 7
//	// unset                        -> 5
//	// both of the above set        -> 5, plus a warning
package envoverride
