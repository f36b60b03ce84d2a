package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrApplicationNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "application")
}

func NewErrJobNotFound(jobID string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("job posting %s not found", jobID)}
}

type ErrForbidden struct {
	error
}

func NewErrApplicationForbidden(id uuid.UUID) *ErrForbidden {
	return &ErrForbidden{fmt.Errorf("application %s does not belong to the requesting user", id)}
}

type ErrConflict struct {
	error
}

func NewErrDuplicateApplication(companyToken, postingID string) *ErrConflict {
	return &ErrConflict{fmt.Errorf("an active application for %s/%s already exists", companyToken, postingID)}
}

func NewErrWrongState(id uuid.UUID, status string, operation string) *ErrConflict {
	return &ErrConflict{fmt.Errorf("application %s cannot %s while in status %s", id, operation, status)}
}

func NewErrConcurrentUpdate(id uuid.UUID) *ErrConflict {
	return &ErrConflict{fmt.Errorf("application %s was modified concurrently", id)}
}

type ErrExpired struct {
	error
}

func NewErrReviewExpired(id uuid.UUID) *ErrExpired {
	return &ErrExpired{fmt.Errorf("application %s review window has expired", id)}
}

func NewErrSessionExpired(id uuid.UUID) *ErrExpired {
	return &ErrExpired{fmt.Errorf("verification session for application %s has expired", id)}
}

type ErrFormChanged struct {
	error
}

func NewErrFormChanged(id uuid.UUID) *ErrFormChanged {
	return &ErrFormChanged{fmt.Errorf("application form for %s changed since analysis, re-analyze before submitting", id)}
}

type ErrValidation struct {
	error
}

func NewErrInvalidVerificationCode() *ErrValidation {
	return &ErrValidation{fmt.Errorf("verification code must be exactly 8 digits")}
}

type ErrUpstream struct {
	error
}

func NewErrUpstream(operation string, err error) *ErrUpstream {
	return &ErrUpstream{fmt.Errorf("%s failed upstream: %w", operation, err)}
}
