package analysis

import (
	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	"github.com/bryanwahyu/codescan/internal/domain/scanerrors"
)

// Reason says why a submission failed.
type Reason string

const (
	ReasonInvalidCredential     Reason = "InvalidCredential"
	ReasonScanExecutionFailed   Reason = "ScanExecutionFailed"
	ReasonAnalysisTimeout       Reason = "AnalysisTimeout"
	ReasonResultRetrievalFailed Reason = "ResultRetrievalFailed"
)

var reasonMessages = map[Reason]string{
	ReasonInvalidCredential:     "analysis engine credential is invalid",
	ReasonScanExecutionFailed:   "scanner execution failed",
	ReasonAnalysisTimeout:       "analysis did not finish in time",
	ReasonResultRetrievalFailed: "could not retrieve analysis results",
}

// Failure is the typed error returned by Submit.
type Failure struct {
	Reason  Reason
	Details string
	Err     error
}

func (f *Failure) Message() string { return reasonMessages[f.Reason] }

func (f *Failure) Error() string {
	msg := f.Message()
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// Kind maps the reason onto the error taxonomy.
func (f *Failure) Kind() apperr.Kind {
	switch f.Reason {
	case ReasonScanExecutionFailed, ReasonAnalysisTimeout:
		return apperr.KindExecution
	default:
		return apperr.KindUpstream
	}
}

// Phase is where the submission stopped, for the scan error log.
func (f *Failure) Phase() scanerrors.Phase {
	switch f.Reason {
	case ReasonInvalidCredential:
		return scanerrors.PhaseCredential
	case ReasonScanExecutionFailed:
		return scanerrors.PhaseScan
	case ReasonAnalysisTimeout:
		return scanerrors.PhasePolling
	default:
		return scanerrors.PhaseRetrieval
	}
}
