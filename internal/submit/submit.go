package submit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/restaurant-storefront/internal/apiclient"
	"github.com/jogardn/restaurant-storefront/pkg/models"
)

var ErrNoCandidates = errors.New("no request shapes to try")

// shapeRejections are the answers that mean "this body shape is wrong, try
// the next one". Anything else ends the attempt sequence.
var shapeRejections = []int{
	http.StatusBadRequest,
	http.StatusNotFound,
	http.StatusMethodNotAllowed,
	http.StatusUnsupportedMediaType,
}

// Candidate is one request shape for the same logical submission.
type Candidate struct {
	Name string
	Path string
	Body map[string]interface{}
}

// AnonymousRetryError is returned when a pass refused credentials and the
// anonymous rerun failed as well. It unwraps to the authenticated pass's
// error; Anonymous holds how the rerun ended.
type AnonymousRetryError struct {
	Authenticated error
	Anonymous     error
}

func (e *AnonymousRetryError) Error() string {
	return e.Authenticated.Error()
}

func (e *AnonymousRetryError) Unwrap() error {
	return e.Authenticated
}

// IsShapeRejection reports whether err means the backend refused the body
// shape. After an anonymous rerun the rerun's outcome decides.
func IsShapeRejection(err error) bool {
	var retry *AnonymousRetryError
	if errors.As(err, &retry) {
		return apiclient.IsStatus(retry.Anonymous, shapeRejections...)
	}
	return apiclient.IsStatus(err, shapeRejections...)
}

type Submitter struct {
	client *apiclient.Client
	logger *logrus.Logger
	now    func() time.Time
}

func New(client *apiclient.Client, logger *logrus.Logger) *Submitter {
	return &Submitter{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// TryInOrder posts each candidate in turn until one is accepted. A pass that
// ends in 401/403 is repeated once without credentials; if that pass fails
// too, an *AnonymousRetryError carrying both outcomes is returned.
func (s *Submitter) TryInOrder(ctx context.Context, candidates []Candidate) (*models.SubmitResult, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	result, err := s.pass(ctx, candidates, false)
	if err == nil || !apiclient.IsAuthError(err) {
		return result, err
	}

	s.logger.WithError(err).WithField("path", candidates[0].Path).Info("Submission refused credentials, retrying anonymously")
	result, anonErr := s.pass(ctx, candidates, true)
	if anonErr == nil {
		return result, nil
	}
	s.logger.WithError(anonErr).Debug("Anonymous submission failed too")
	return nil, &AnonymousRetryError{Authenticated: err, Anonymous: anonErr}
}

func (s *Submitter) pass(ctx context.Context, candidates []Candidate, anonymous bool) (*models.SubmitResult, error) {
	var lastErr error
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := s.client.Raw(ctx, candidate.Path, apiclient.Options{
			Method: http.MethodPost,
			Body:   candidate.Body,
			NoAuth: anonymous,
		})
		if err == nil {
			s.logger.WithFields(logrus.Fields{
				"path":      candidate.Path,
				"shape":     candidate.Name,
				"attempt":   i + 1,
				"anonymous": anonymous,
			}).Info("Submission accepted")
			return &models.SubmitResult{
				Endpoint:  candidate.Path,
				Shape:     candidate.Name,
				Response:  decodeResponse(data),
				Submitted: s.now(),
			}, nil
		}

		lastErr = err
		if !IsShapeRejection(err) {
			return nil, err
		}
		s.logger.WithFields(logrus.Fields{
			"path":   candidate.Path,
			"shape":  candidate.Name,
			"status": apiclient.StatusOf(err),
		}).Debug("Body shape rejected")
	}
	return nil, lastErr
}

func decodeResponse(data []byte) map[string]interface{} {
	if len(data) == 0 {
		return nil
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return map[string]interface{}{"raw": string(data)}
	}
	if object, ok := raw.(map[string]interface{}); ok {
		return object
	}
	return map[string]interface{}{"data": raw}
}

// dedupe drops candidates whose path and body encode identically to an
// earlier one, keeping the original order.
func dedupe(candidates []Candidate) []Candidate {
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		encoded, err := json.Marshal(c.Body)
		if err != nil {
			continue
		}
		key := c.Path + " " + string(encoded)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
