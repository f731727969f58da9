package awsses

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	"github.com/International-Combat-Archery-Alliance/mailer"
)

var _ mailer.Transport = &Transport{}

type SESClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Transport sends through SES v2. SES accepts or rejects the whole message,
// so a successful call reports every recipient as accepted.
type Transport struct {
	sesClient SESClient
}

func NewTransport(client SESClient) *Transport {
	return &Transport{
		sesClient: client,
	}
}

func (a *Transport) Transmit(ctx context.Context, e mailer.Email) (mailer.Transmission, error) {
	content, err := contentFromEmail(e)
	if err != nil {
		return mailer.Transmission{}, err
	}

	input := &sesv2.SendEmailInput{
		Content: content,
		Destination: &types.Destination{
			ToAddresses:  e.ToAddresses,
			CcAddresses:  e.CCAddresses,
			BccAddresses: e.BCCAddresses,
		},
		ReplyToAddresses: e.ReplyToAddresses,
		EmailTags:        tagsFromEmail(e),
	}
	if e.FromAddress != "" {
		input.FromEmailAddress = aws.String(e.FromAddress)
	}

	out, err := a.sesClient.SendEmail(ctx, input)
	if err != nil {
		return mailer.Transmission{}, categorizeAWSError(err)
	}

	return mailer.Transmission{
		ID:       aws.ToString(out.MessageId),
		Accepted: len(e.Recipients()),
	}, nil
}

func contentFromEmail(e mailer.Email) (*types.EmailContent, error) {
	if e.UsesTemplate() {
		data := "{}"
		if len(e.SubstitutionData) > 0 {
			raw, err := json.Marshal(e.SubstitutionData)
			if err != nil {
				return nil, mailer.NewValidationError("substitution data is not JSON encodable", err)
			}
			data = string(raw)
		}

		return &types.EmailContent{
			Template: &types.Template{
				TemplateName: aws.String(e.TemplateID),
				TemplateData: aws.String(data),
			},
		}, nil
	}

	return &types.EmailContent{
		Simple: &types.Message{
			Body: &types.Body{
				Html: htmlContentFromEmail(e),
				Text: textContentFromEmail(e),
			},
			Subject:     utf8Content(e.Subject),
			Attachments: attachmentsToAWS(e.Attachments),
		},
	}, nil
}

// tagsFromEmail maps the campaign id to an SES message tag so it shows up in
// event publishing the same way SparkPost reports campaigns.
func tagsFromEmail(e mailer.Email) []types.MessageTag {
	if e.CampaignID == "" {
		return nil
	}
	return []types.MessageTag{{
		Name:  aws.String("campaign"),
		Value: aws.String(e.CampaignID),
	}}
}

func attachmentsToAWS(attachments []mailer.Attachment) []types.Attachment {
	awsAttachments := make([]types.Attachment, len(attachments))

	for i, a := range attachments {
		awsAttachments[i] = attachmentToAWS(a)
	}

	return awsAttachments
}

func attachmentToAWS(attachment mailer.Attachment) types.Attachment {
	return types.Attachment{
		FileName:           aws.String(attachment.FileName),
		RawContent:         attachment.Content,
		ContentType:        aws.String(attachment.ContentType),
		ContentDescription: aws.String(attachment.Description),
		ContentDisposition: types.AttachmentContentDispositionAttachment,
	}
}

func htmlContentFromEmail(e mailer.Email) *types.Content {
	if e.HTMLBody == "" {
		return nil
	}

	return utf8Content(e.HTMLBody)
}

func textContentFromEmail(e mailer.Email) *types.Content {
	if e.TextBody == "" {
		return nil
	}

	return utf8Content(e.TextBody)
}

func utf8Content(s string) *types.Content {
	return &types.Content{
		Data:    aws.String(s),
		Charset: aws.String("UTF-8"),
	}
}

func categorizeAWSError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return mailer.NewServiceError("failed to reach SES", err)
	}

	var mErr *mailer.Error
	switch apiErr.ErrorCode() {
	case "TooManyRequestsException", "LimitExceededException", "SendingPausedException":
		mErr = mailer.NewRateLimitedError("sending rate limit exceeded", err)
	case "MessageRejected":
		mErr = mailer.NewMessageRejectedError("message rejected by SES", err)
	case "MailFromDomainNotVerifiedException":
		mErr = mailer.NewUnverifiedDomainError("sender domain not verified", err)
	case "BadRequestException", "InvalidParameterValueException":
		mErr = mailer.NewInvalidEmailError("invalid email parameter", err)
	case "NotFoundException":
		mErr = mailer.NewValidationError("template not found", err)
	case "AccountSuspendedException", "AccessDeniedException", "UnrecognizedClientException":
		mErr = mailer.NewAuthenticationError("SES refused the credentials", err)
	case "ServiceUnavailableException", "InternalServiceErrorException":
		mErr = mailer.NewServiceError("AWS SES service error", err)
	default:
		mErr = mailer.NewUnknownError("failed to send email", err)
	}

	return mErr.WithAPIDetails(apiErr.ErrorCode(), apiErr.ErrorMessage(), apiErr.ErrorFault().String())
}
