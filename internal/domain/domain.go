package domain

import (
	"github.com/urbanwatch/urbanwatch-backend/internal/domain/incident"
	"github.com/urbanwatch/urbanwatch-backend/internal/domain/jobs"
	"github.com/urbanwatch/urbanwatch-backend/internal/domain/user"
)

type User = user.User
type UserToken = user.UserToken
type UserOTP = user.UserOTP
type UserSuspension = user.UserSuspension

type Accident = incident.Accident
type Concern = incident.Concern
type ConcernDistribution = incident.ConcernDistribution
type IncidentMedia = incident.IncidentMedia
type FalseAlarm = incident.FalseAlarm
type Device = incident.Device
type SourceKind = incident.SourceKind

type JobRun = jobs.JobRun

const (
	RoleCitizen     = user.RoleCitizen
	RoleOperator    = user.RoleOperator
	RolePurokLeader = user.RolePurokLeader
)

const (
	AbilityAccessAPI    = user.AbilityAccessAPI
	AbilityRefreshToken = user.AbilityRefreshToken
)

const (
	AccidentStatusPending    = incident.AccidentStatusPending
	AccidentStatusInProgress = incident.AccidentStatusInProgress
	AccidentStatusResolved   = incident.AccidentStatusResolved
	AccidentStatusArchived   = incident.AccidentStatusArchived
)

const (
	SeverityLow    = incident.SeverityLow
	SeverityMedium = incident.SeverityMedium
	SeverityHigh   = incident.SeverityHigh
)

const (
	ConcernStatusPending   = incident.ConcernStatusPending
	ConcernStatusOngoing   = incident.ConcernStatusOngoing
	ConcernStatusEscalated = incident.ConcernStatusEscalated
	ConcernStatusResolved  = incident.ConcernStatusResolved
)

const (
	DistributionStatusAssigned     = incident.DistributionStatusAssigned
	DistributionStatusAcknowledged = incident.DistributionStatusAcknowledged
	DistributionStatusInProgress   = incident.DistributionStatusInProgress
	DistributionStatusResolved     = incident.DistributionStatusResolved
)

const (
	SourceAccident = incident.SourceAccident
	SourceConcern  = incident.SourceConcern
	SourceDevice   = incident.SourceDevice
)

const (
	JobStatusQueued    = jobs.JobStatusQueued
	JobStatusRunning   = jobs.JobStatusRunning
	JobStatusSucceeded = jobs.JobStatusSucceeded
	JobStatusFailed    = jobs.JobStatusFailed
)

const (
	JobProcessManualConcern = jobs.JobProcessManualConcern
	JobProcessVoiceConcern  = jobs.JobProcessVoiceConcern
	JobNotifyEmail          = jobs.JobNotifyEmail
	JobNotifySMS            = jobs.JobNotifySMS
	JobNotifyAssignment     = jobs.JobNotifyAssignment
)

const JobMaxAttempts = jobs.MaxAttempts
