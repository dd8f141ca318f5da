package nmi

import "encoding/xml"

// Processor result codes shared by the three step and transaction APIs.
// Anything other than 1 is a refusal or a fault and the two must stay
// distinguishable.
const (
	resultApproved = "1"
	resultDeclined = "2"
	resultError    = "3"
)

// stepOneRequest is the XML body that begins a three step interactive sale
type stepOneRequest struct {
	XMLName     xml.Name        `xml:"sale"`
	APIKey      string          `xml:"api-key"`
	RedirectURL string          `xml:"redirect-url"`
	Amount      string          `xml:"amount"`
	Currency    string          `xml:"currency"`
	Billing     *stepOneContact `xml:"billing,omitempty"`
	Shipping    *stepOneContact `xml:"shipping,omitempty"`
}

type stepOneContact struct {
	FirstName  string `xml:"first-name,omitempty"`
	LastName   string `xml:"last-name,omitempty"`
	Address1   string `xml:"address1,omitempty"`
	City       string `xml:"city,omitempty"`
	State      string `xml:"state,omitempty"`
	PostalCode string `xml:"postal,omitempty"`
	Country    string `xml:"country,omitempty"`
	Email      string `xml:"email,omitempty"`
	Phone      string `xml:"phone,omitempty"`
}

// stepThreeRequest completes a previously initialized sale using the token
// returned by the hosted form redirect
type stepThreeRequest struct {
	XMLName xml.Name `xml:"complete-action"`
	APIKey  string   `xml:"api-key"`
	TokenID string   `xml:"token-id"`
}

// threeStepResponse is the envelope of every three step API reply
type threeStepResponse struct {
	XMLName       xml.Name `xml:"response"`
	Result        string   `xml:"result"`
	ResultText    string   `xml:"result-text"`
	ResultCode    string   `xml:"result-code"`
	FormURL       string   `xml:"form-url"`
	TransactionID string   `xml:"transaction-id"`
	Amount        string   `xml:"amount"`
	Currency      string   `xml:"currency"`
	Billing       struct {
		CCNumber string `xml:"cc-number"`
	} `xml:"billing"`
}

// maskedLast4 extracts the last four digits from a masked card number
// such as "4xxxxxxxxxxx1111"
func maskedLast4(masked string) string {
	if len(masked) < 4 {
		return ""
	}
	return masked[len(masked)-4:]
}
