// internal/matching/notifier.go
package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

const notificationType = "matches_ready"

type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SESSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Notifier tells a senior and their family that matches are ready. Delivery is best effort:
// failures are reported in the returned records, never as an error.
type Notifier struct {
	sns       SNSPublisher
	ses       SESSender
	topicARN  string
	fromEmail string
	logger    logger.Logger
}

// NewNotifier accepts nil clients; the matching channel is then reported as disabled.
func NewNotifier(snsClient SNSPublisher, sesClient SESSender, topicARN, fromEmail string, log logger.Logger) *Notifier {
	return &Notifier{
		sns:       snsClient,
		ses:       sesClient,
		topicARN:  topicARN,
		fromEmail: fromEmail,
		logger:    log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

type pushPayload struct {
	Type        string `json:"type"`
	SeniorID    string `json:"seniorId"`
	RecipientID string `json:"recipientId"`
	MatchCount  int    `json:"matchCount"`
}

// NotifyMatchesReady pushes to the senior and each family member, then emails the family.
func (n *Notifier) NotifyMatchesReady(ctx context.Context, senior *models.SeniorProfile, matchCount int) []models.Notification {
	recipients := append([]string{senior.ID}, senior.FamilyMemberIDs...)
	out := make([]models.Notification, 0, len(recipients)+1)

	for _, r := range recipients {
		out = append(out, n.push(ctx, senior.ID, r, matchCount))
	}
	if len(senior.FamilyEmails) > 0 {
		out = append(out, n.email(ctx, senior, matchCount))
	}
	return out
}

func (n *Notifier) newRecord(seniorID, recipientID, channel string, matchCount int) models.Notification {
	return models.Notification{
		ID:          uuid.New().String(),
		SeniorID:    seniorID,
		RecipientID: recipientID,
		Type:        notificationType,
		Channel:     channel,
		MatchCount:  matchCount,
	}
}

func (n *Notifier) push(ctx context.Context, seniorID, recipientID string, matchCount int) models.Notification {
	rec := n.newRecord(seniorID, recipientID, "push", matchCount)
	if n.sns == nil || n.topicARN == "" {
		rec.Status = "disabled"
		return rec
	}

	body, _ := json.Marshal(pushPayload{
		Type:        notificationType,
		SeniorID:    seniorID,
		RecipientID: recipientID,
		MatchCount:  matchCount,
	})
	_, err := n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String("Caregiver matches ready"),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"recipient_id": {DataType: aws.String("String"), StringValue: aws.String(recipientID)},
			"type":         {DataType: aws.String("String"), StringValue: aws.String(notificationType)},
		},
	})
	if err != nil {
		rec.Status = "failed"
		n.logger.Warn("push notification failed", map[string]interface{}{
			"seniorId":    seniorID,
			"recipientId": recipientID,
			"error":       apperrors.NewNotificationSendFailedError("push", err).Error(),
		})
		return rec
	}
	rec.Status = "sent"
	rec.SentAt = time.Now().UTC().Format(time.RFC3339)
	return rec
}

func (n *Notifier) email(ctx context.Context, senior *models.SeniorProfile, matchCount int) models.Notification {
	rec := n.newRecord(senior.ID, "family", "email", matchCount)
	rec.Emails = senior.FamilyEmails
	if n.ses == nil || n.fromEmail == "" {
		rec.Status = "disabled"
		return rec
	}

	name := senior.Name
	if name == "" {
		name = "your family member"
	}
	subject := fmt.Sprintf("%d caregiver matches ready for %s", matchCount, name)
	text := fmt.Sprintf("We found %d caregivers who may be a good fit for %s. Sign in to review them.", matchCount, name)

	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.fromEmail),
		Destination: &sestypes.Destination{ToAddresses: senior.FamilyEmails},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(text)},
			},
		},
	})
	if err != nil {
		rec.Status = "failed"
		n.logger.Warn("family email failed", map[string]interface{}{
			"seniorId": senior.ID,
			"to":       strings.Join(senior.FamilyEmails, ","),
			"error":    apperrors.NewNotificationSendFailedError("email", err).Error(),
		})
		return rec
	}
	rec.Status = "sent"
	rec.SentAt = time.Now().UTC().Format(time.RFC3339)
	return rec
}
