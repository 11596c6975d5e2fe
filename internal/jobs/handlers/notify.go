package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/urbanwatch/urbanwatch-backend/internal/clients/sendgrid"
	"github.com/urbanwatch/urbanwatch-backend/internal/clients/twilio"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	jobspkg "github.com/urbanwatch/urbanwatch-backend/internal/jobs"
	jobrt "github.com/urbanwatch/urbanwatch-backend/internal/jobs/runtime"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
)

func newNotifyEmail(d Deps) jobrt.Handler {
	return jobrt.HandlerFunc(func(ctx context.Context, job *types.JobRun) ([]byte, error) {
		if d.Email == nil {
			return nil, jobrt.Permanent(fmt.Errorf("email delivery not configured"))
		}
		var payload jobspkg.NotifyEmailPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, jobrt.Permanent(fmt.Errorf("bad payload: %w", err))
		}
		if strings.TrimSpace(payload.To) == "" {
			return nil, jobrt.Permanent(fmt.Errorf("missing recipient"))
		}

		res, err := d.Email.Send(ctx, sendgrid.SendEmailRequest{
			To:      []sendgrid.EmailAddress{{Email: payload.To}},
			Subject: payload.Subject,
			Text:    payload.Text,
			HTML:    payload.HTML,
		})
		if err != nil {
			return nil, classifySendErr(err)
		}
		return json.Marshal(map[string]any{"message_id": res.MessageID, "status_code": res.StatusCode})
	})
}

func newNotifySMS(d Deps) jobrt.Handler {
	return jobrt.HandlerFunc(func(ctx context.Context, job *types.JobRun) ([]byte, error) {
		if d.SMS == nil {
			return nil, jobrt.Permanent(fmt.Errorf("sms delivery not configured"))
		}
		var payload jobspkg.NotifySMSPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, jobrt.Permanent(fmt.Errorf("bad payload: %w", err))
		}
		if strings.TrimSpace(payload.To) == "" {
			return nil, jobrt.Permanent(fmt.Errorf("missing recipient"))
		}

		msg, err := d.SMS.SendSMS(ctx, payload.To, payload.Body)
		if err != nil {
			return nil, classifySendErr(err)
		}
		return json.Marshal(map[string]any{"sid": msg.SID, "status": msg.Status})
	})
}

// newNotifyAssignment tells the assigned purok leader about a new concern
// over whichever channels their profile supports.
func newNotifyAssignment(d Deps) jobrt.Handler {
	return jobrt.HandlerFunc(func(ctx context.Context, job *types.JobRun) ([]byte, error) {
		var payload jobspkg.NotifyAssignmentPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, jobrt.Permanent(fmt.Errorf("bad payload: %w", err))
		}

		dist, err := d.Distributions.GetByID(ctx, nil, payload.DistributionID)
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, jobrt.Permanent(fmt.Errorf("distribution %s no longer exists", payload.DistributionID))
		}
		if err != nil {
			return nil, err
		}
		concern, err := d.Concerns.GetByID(ctx, nil, dist.ConcernID)
		if err != nil {
			return nil, err
		}
		official, err := d.Users.GetByID(ctx, nil, dist.OfficialID)
		if err != nil {
			return nil, err
		}

		subject := fmt.Sprintf("New concern assigned: %s", concern.Title)
		body := fmt.Sprintf(
			"Hi %s, a %s concern (%s) has been assigned to you: %s",
			official.FirstName, concern.Severity, concern.Category, concern.Title,
		)

		sent := map[string]any{}
		if d.Email != nil && strings.TrimSpace(official.Email) != "" {
			if res, err := d.Email.Send(ctx, sendgrid.SendEmailRequest{
				To:      []sendgrid.EmailAddress{{Email: official.Email, Name: official.FirstName + " " + official.LastName}},
				Subject: subject,
				Text:    body,
			}); err != nil {
				return nil, classifySendErr(err)
			} else {
				sent["email_message_id"] = res.MessageID
			}
		}
		if d.SMS != nil && official.PhoneVerifiedAt != nil && strings.TrimSpace(official.Phone) != "" {
			if msg, err := d.SMS.SendSMS(ctx, official.Phone, body); err != nil {
				return nil, classifySendErr(err)
			} else {
				sent["sms_sid"] = msg.SID
			}
		}
		if len(sent) == 0 {
			d.Log.Warn("Assignment notification had no reachable channel", "distribution_id", dist.ID, "official_id", official.ID)
		}
		return json.Marshal(sent)
	})
}

// classifySendErr keeps provider 4xx responses out of the retry cycle; a bad
// recipient or rejected payload will not improve on attempt two.
func classifySendErr(err error) error {
	var sg *sendgrid.HTTPError
	if errors.As(err, &sg) && sg.StatusCode >= 400 && sg.StatusCode < 500 && sg.StatusCode != 429 {
		return jobrt.Permanent(err)
	}
	var tw *twilio.HTTPError
	if errors.As(err, &tw) && tw.StatusCode >= 400 && tw.StatusCode < 500 && tw.StatusCode != 429 {
		return jobrt.Permanent(err)
	}
	return err
}
