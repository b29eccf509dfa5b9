package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"facturepro/internal/core"
)

// Brand is the storefront an e-mail is sent under.
type Brand struct {
	Key      string
	Name     string
	Language string
	Domain   string
}

var brands = map[string]Brand{
	"facturepro": {Key: "facturepro", Name: "FacturePro", Language: "fr", Domain: "facturepro.be"},
	"factuurpro": {Key: "factuurpro", Name: "FactuurPro", Language: "nl", Domain: "factuurpro.be"},
}

// BrandFor returns the brand of key, defaulting to FacturePro.
func BrandFor(key string) Brand {
	if b, ok := brands[strings.ToLower(strings.TrimSpace(key))]; ok {
		return b
	}
	return brands["facturepro"]
}

type copyText struct {
	InvoiceSubject  string
	ReminderSubject string
	DateLayout      string
}

var texts = map[string]copyText{
	"fr": {
		InvoiceSubject:  "Nouvelle Facture de %s - N° %s",
		ReminderSubject: "Rappel de paiement - Facture N° %s",
		DateLayout:      "02/01/2006",
	},
	"nl": {
		InvoiceSubject:  "Nieuwe factuur van %s - Nr. %s",
		ReminderSubject: "Betalingsherinnering - Factuur Nr. %s",
		DateLayout:      "02/01/2006",
	},
}

const footer = `<hr style="border: 0; border-top: 1px solid #eaeaea; margin: 30px 0;" />
<p style="font-size: 12px; color: #666;">
{{if eq .Language "nl"}}Deze e-mail werd veilig verzonden via FactuurPro.be / FacturePro.be{{else}}Cet email a été envoyé de manière sécurisée via FacturePro.be / FactuurPro.be{{end}}
</p>`

const invoiceHTML = `<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
{{if eq .Language "nl"}}<h2>Beste {{.ClientName}},</h2>
<p>In bijlage vindt u uw factuur <strong>Nr. {{.Number}}</strong> van {{.SellerName}}.</p>
<p>Het bijgevoegde PDF-document bevat alle details en de betalingsinstructies.</p>
<p>Te betalen bedrag: <strong>{{.Total}}</strong>{{if .DueDate}} vóór {{.DueDate}}{{end}}</p>
{{if .IBAN}}<p>IBAN: {{.IBAN}}<br/>Gestructureerde mededeling: {{.Reference}}</p>{{end}}
<br/>
<p>Met vriendelijke groeten,</p>{{else}}<h2>Bonjour {{.ClientName}},</h2>
<p>Veuillez trouver ci-joint votre facture <strong>N° {{.Number}}</strong> émise par {{.SellerName}}.</p>
<p>Le document PDF attaché contient tous les détails nécessaires ainsi que les instructions de paiement.</p>
<p>Montant à payer : <strong>{{.Total}}</strong>{{if .DueDate}} avant le {{.DueDate}}{{end}}</p>
{{if .IBAN}}<p>IBAN : {{.IBAN}}<br/>Communication structurée : {{.Reference}}</p>{{end}}
<br/>
<p>Cordialement,</p>{{end}}
<p><strong>{{.SellerName}}</strong></p>
{{template "footer" .}}
</div>`

const reminderHTML = `<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
{{if eq .Language "nl"}}<h2>Beste {{.ClientName}},</h2>
<p>Behoudens vergissing van onzentwege lijkt de betaling van factuur <strong>Nr. {{.Number}}</strong> van {{.SellerName}} achterstallig.</p>
<p>Openstaand bedrag: <strong>{{.Total}}</strong>{{if .DueDate}}, vervallen op {{.DueDate}}{{end}}</p>
{{if .IBAN}}<p>IBAN: {{.IBAN}}<br/>Gestructureerde mededeling: {{.Reference}}</p>{{end}}
<p>Wij zouden het op prijs stellen als u de betaling zo spoedig mogelijk uitvoert.</p>
<p>Indien uw betaling intussen al is uitgevoerd, mag u dit bericht als onbestaande beschouwen.</p>
<br/>
<p>Met vriendelijke groeten,</p>{{else}}<h2>Bonjour {{.ClientName}},</h2>
<p>Sauf erreur ou omission de notre part, le paiement de la facture <strong>N° {{.Number}}</strong> émise par {{.SellerName}} semble être en retard.</p>
<p>Montant dû : <strong>{{.Total}}</strong>{{if .DueDate}}, échu le {{.DueDate}}{{end}}</p>
{{if .IBAN}}<p>IBAN : {{.IBAN}}<br/>Communication structurée : {{.Reference}}</p>{{end}}
<p>Nous vous serions reconnaissants de bien vouloir procéder au règlement dans les plus brefs délais.</p>
<p>Si votre paiement a déjà été effectué entre-temps, veuillez ne pas tenir compte de ce message.</p>
<br/>
<p>Cordialement,</p>{{end}}
<p><strong>{{.SellerName}}</strong></p>
</div>`

var (
	invoiceTmpl  = template.Must(template.Must(template.New("invoice").Parse(invoiceHTML)).New("footer").Parse(footer))
	reminderTmpl = template.Must(template.New("reminder").Parse(reminderHTML))
)

var whitespace = regexp.MustCompile(`\s+`)

type emailData struct {
	Language   string
	ClientName string
	SellerName string
	Number     string
	Total      string
	DueDate    string
	IBAN       string
	Reference  string
}

// Composer renders the e-mails of one brand.
type Composer struct {
	brand          Brand
	fromAddress    string
	defaultReplyTo string
	format         core.FormatConfig
	text           copyText
}

func NewComposer(brand Brand, fromAddress, defaultReplyTo string) *Composer {
	text, ok := texts[brand.Language]
	if !ok {
		text = texts["fr"]
	}
	return &Composer{
		brand:          brand,
		fromAddress:    fromAddress,
		defaultReplyTo: defaultReplyTo,
		format:         core.FormatConfigFor(brand.Language),
		text:           text,
	}
}

// InvoiceEmail builds the e-mail carrying a rendered invoice PDF.
func (c *Composer) InvoiceEmail(inv core.Invoice, pdf []byte, replyTo string) (Message, error) {
	data := c.data(inv)
	html, err := render(invoiceTmpl, "invoice", data)
	if err != nil {
		return Message{}, err
	}
	msg := c.envelope(inv, data.SellerName, replyTo)
	msg.Subject = fmt.Sprintf(c.text.InvoiceSubject, data.SellerName, inv.Number)
	msg.HTML = html
	if len(pdf) > 0 {
		msg.Attachments = []Attachment{{Filename: AttachmentName(inv.Number), Content: pdf}}
	}
	return msg, nil
}

// ReminderEmail builds the payment reminder of an overdue invoice.
func (c *Composer) ReminderEmail(inv core.Invoice, replyTo string) (Message, error) {
	data := c.data(inv)
	html, err := render(reminderTmpl, "reminder", data)
	if err != nil {
		return Message{}, err
	}
	msg := c.envelope(inv, data.SellerName, replyTo)
	msg.Subject = fmt.Sprintf(c.text.ReminderSubject, inv.Number)
	msg.HTML = html
	return msg, nil
}

// AttachmentName is the PDF file name of an invoice, whitespace replaced by "_".
func AttachmentName(number string) string {
	return "Facture_" + whitespace.ReplaceAllString(strings.TrimSpace(number), "_") + ".pdf"
}

func (c *Composer) envelope(inv core.Invoice, sellerName, replyTo string) Message {
	if replyTo == "" {
		replyTo = strings.TrimSpace(inv.Data.Seller.Email)
	}
	if replyTo == "" {
		replyTo = c.defaultReplyTo
	}
	return Message{
		From:    fmt.Sprintf("%s <%s>", sellerName, c.fromAddress),
		To:      strings.TrimSpace(inv.Data.Client.Email),
		ReplyTo: replyTo,
	}
}

func (c *Composer) data(inv core.Invoice) emailData {
	seller := strings.TrimSpace(inv.Data.Seller.CompanyName)
	if seller == "" {
		seller = c.brand.Name
	}
	client := strings.TrimSpace(inv.ClientName)
	if client == "" {
		client = strings.TrimSpace(inv.Data.Client.CompanyName)
	}
	if client == "" {
		client = "Client"
	}
	d := emailData{
		Language:   c.brand.Language,
		ClientName: client,
		SellerName: seller,
		Number:     inv.Number,
		Total:      core.FormatCurrencyWith(c.format, inv.Totals.GrandTotal),
		IBAN:       strings.TrimSpace(inv.Data.Seller.IBAN),
		Reference:  inv.Reference(),
	}
	if due := inv.DueDate(); !due.IsEmpty() {
		d.DueDate = due.Format(c.text.DateLayout)
	}
	return d
}

func render(t *template.Template, name string, data emailData) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s e-mail: %w", name, err)
	}
	return buf.String(), nil
}
