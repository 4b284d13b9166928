package models

import "time"

// RemainingSeconds calculates the countdown left on a player's timer.
// The countdown is never stored: it is derived from the start timestamp
// (UTC epoch seconds) and the duration on every observation.
//
// An unset start (0) means no timer is running. The result is truncated to
// whole seconds, floored at 0, and capped at duration so that a reader whose
// clock lags the writer's never shows more time than was granted.
func RemainingSeconds(startTS int64, duration int, now time.Time) int {
	if startTS <= 0 || duration <= 0 {
		return 0
	}

	elapsed := now.Sub(time.Unix(startTS, 0)).Seconds()
	if elapsed < 0 {
		return duration
	}

	remaining := int(float64(duration) - elapsed)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TimerExpired reports whether a running timer has reached zero. It is
// advisory: nothing closes a player automatically when it fires.
func TimerExpired(startTS int64, duration int, now time.Time) bool {
	return startTS > 0 && RemainingSeconds(startTS, duration, now) == 0
}
