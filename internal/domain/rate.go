package domain

// RateSource explains which precedence tier produced a time entry's rate.
type RateSource string

const (
	RateSourceTimeEntry RateSource = "TimeEntry"
	RateSourceProject   RateSource = "Project"
	RateSourceClient    RateSource = "Client"
	RateSourceSettings  RateSource = "Settings"
)
