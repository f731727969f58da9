package mailer

type Email struct {
	FromAddress      string
	ToAddresses      []string
	CCAddresses      []string
	BCCAddresses     []string
	ReplyToAddresses []string
	Subject          string
	HTMLBody         string
	// The email body for recipients with non-HTML email clients.
	TextBody string

	// TemplateID references a template stored at the provider. When set the
	// provider renders the body and HTMLBody/TextBody are ignored.
	TemplateID       string
	SubstitutionData map[string]any
	CampaignID       string
	Metadata         map[string]any
	Transactional    bool
	Sandbox          bool

	Attachments []Attachment
}

type Attachment struct {
	FileName    string
	Content     []byte
	ContentType string
	Description string
}

// Recipients returns every To, CC and BCC address in order.
func (e Email) Recipients() []string {
	all := make([]string, 0, len(e.ToAddresses)+len(e.CCAddresses)+len(e.BCCAddresses))
	all = append(all, e.ToAddresses...)
	all = append(all, e.CCAddresses...)
	return append(all, e.BCCAddresses...)
}

func (e Email) HasRecipients() bool {
	return len(e.ToAddresses)+len(e.CCAddresses)+len(e.BCCAddresses) > 0
}

func (e Email) UsesTemplate() bool {
	return e.TemplateID != ""
}
