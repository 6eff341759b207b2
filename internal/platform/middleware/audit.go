package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// AuditEntry records one access to patient data.
type AuditEntry struct {
	RequestID  string
	PatientID  string
	Resource   string // snapshot, timeline, notes, copilot, actions, ...
	Action     string // read, create, update, delete, query
	Method     string
	Path       string
	IPAddress  string
	UserAgent  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every request under /patients/ as a phi_access event after the
// handler has run. Recorder failures are logged and never fail the request.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			patientID, resource, ok := parsePatientPath(req.URL.Path)
			if !ok {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, isHTTP := err.(*echo.HTTPError); isHTTP {
				status = he.Code
			}
			entry := AuditEntry{
				PatientID:  patientID,
				Resource:   resource,
				Action:     auditAction(req.Method, resource),
				Method:     req.Method,
				Path:       req.URL.Path,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: status,
				Timestamp:  time.Now().UTC(),
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "phi_access").
				Str("request_id", entry.RequestID).
				Str("patient_id", entry.PatientID).
				Str("resource", entry.Resource).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

// parsePatientPath splits /patients/<id>[/<resource>/...] into its patient id
// and first resource segment.
func parsePatientPath(path string) (patientID, resource string, ok bool) {
	rest, found := strings.CutPrefix(path, "/patients/")
	if !found {
		return "", "", false
	}
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if segments[0] == "" {
		return "", "", false
	}
	resource = "patient"
	if len(segments) > 1 && segments[1] != "" {
		resource = segments[1]
	}
	return segments[0], resource, true
}

func auditAction(method, resource string) string {
	if resource == "copilot" {
		return "query"
	}
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
