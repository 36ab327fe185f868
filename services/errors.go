package services

import "errors"

// Error kinds surfaced by the sequence engine. All are fail-fast: nothing at
// this layer retries. Callers match with errors.Is; the HTTP layer maps kinds
// to statuses. Not-found kinds cover both "absent" and "other tenant" so no
// existence information leaks across organizations.
var (
	ErrSequenceNotFound    = errors.New("sequence not found")
	ErrSequenceRunNotFound = errors.New("sequence run not found")
	ErrTemplateNotFound    = errors.New("template not found")
	ErrLeadNotFound        = errors.New("lead not found")

	ErrSequenceInvalidSteps   = errors.New("invalid sequence steps")
	ErrSequenceNotActive      = errors.New("sequence is not active")
	ErrSequenceAlreadyRunning = errors.New("sequence already running for this lead")

	ErrTemplateChannelMismatch  = errors.New("template channel does not match step channel")
	ErrTemplateUnknownVariable  = errors.New("unknown template variable")
	ErrTemplateSubjectForbidden = errors.New("subject is not allowed for this channel")
	ErrTemplateSubjectRequired  = errors.New("subject is required for this channel")

	ErrProviderNotConfigured = errors.New("no active provider configured for channel")
)
