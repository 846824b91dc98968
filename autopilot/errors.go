package autopilot

import "errors"

// ErrSiteNotFound is returned when the referenced site does not exist.
var ErrSiteNotFound = errors.New("autopilot: site not found")

// ErrInvalidCadence is returned for a cadence outside the allowed set.
var ErrInvalidCadence = errors.New("autopilot: invalid cadence")

// ErrInvalidDate is returned for a calendar date not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("autopilot: invalid date")

// ErrPipelineBusy is returned when an operation requires an idle pipeline.
var ErrPipelineBusy = errors.New("autopilot: pipeline busy")
