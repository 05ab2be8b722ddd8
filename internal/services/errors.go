package services

import "fmt"

// Service errors
var (
	ErrNoActiveSurvey = &ServiceError{Message: "no survey is running this week"}
	ErrNoVotes        = &ServiceError{Message: "no votes have been recorded"}
	ErrSurveyNotFound = &ServiceError{Message: "survey not found"}
)

// ServiceError represents a service-level error
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// InvalidOptionError is returned when vote text matches none of the survey's options
type InvalidOptionError struct {
	Text string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("%q is not one of the survey options", e.Text)
}
