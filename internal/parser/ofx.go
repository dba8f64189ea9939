package parser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/ledgerflow/ledgerflow/internal/common"
)

// OFXSource adapts OFX/QFX statement files into the same row stream the CSV
// parser emits, so both formats flow through one pipeline.
type OFXSource struct {
	content []byte
}

// NewOFXSource creates a source over raw OFX/QFX content.
func NewOFXSource(content []byte) *OFXSource {
	return &OFXSource{content: content}
}

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagRegex  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess fixes common formatting defects in real-world OFX exports:
// mixed-case SEVERITY values and SGML-style tags missing their closing
// bracket.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	content = openTagRegex.ReplaceAllString(content, "$1>")
	return content
}

// Rows parses the OFX document and returns an iterator over its
// transactions. Parse failures are file-level schema errors.
func (s *OFXSource) Rows(ctx context.Context) (*Iterator, error) {
	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(s.content))))
	if err != nil {
		return nil, fmt.Errorf("%w: not a parseable OFX document: %v", common.ErrSchemaDetection, err)
	}

	var rows []Row
	appendStatement := func(curdef string, txns []ofxgo.Transaction) {
		for _, ofxTx := range txns {
			rows = append(rows, convertOFXTransaction(ofxTx, curdef, len(rows)+1))
		}
	}

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			appendStatement(fmt.Sprintf("%v", stmt.CurDef), stmt.BankTranList.Transactions)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			appendStatement(fmt.Sprintf("%v", stmt.CurDef), stmt.BankTranList.Transactions)
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: OFX document contains no statements", common.ErrSchemaDetection)
	}

	idx := 0
	next := func() (Row, bool) {
		if ctx.Err() != nil || idx >= len(rows) {
			return Row{}, false
		}
		row := rows[idx]
		idx++
		return row, true
	}
	return &Iterator{next: next}, nil
}

// convertOFXTransaction maps one OFX transaction to canonical fields. OFX
// encodes direction in the amount sign (negative = money out), which matches
// the signed single-amount layout the normalizer already understands.
func convertOFXTransaction(ofxTx ofxgo.Transaction, curdef string, number int) Row {
	amount, _ := ofxTx.TrnAmt.Float64()

	description := string(ofxTx.Name)
	if ofxTx.Payee != nil && ofxTx.Payee.Name != "" {
		description = string(ofxTx.Payee.Name)
	}
	if description == "" {
		description = string(ofxTx.Memo)
	}

	fields := map[Field]string{
		FieldDate:        ofxTx.DtPosted.Time.Format("2006-01-02"),
		FieldDescription: description,
		FieldAmount:      fmt.Sprintf("%.2f", amount),
	}
	if curdef != "" {
		fields[FieldCurrency] = curdef
	}
	if trnType := fmt.Sprintf("%v", ofxTx.TrnType); trnType != "" {
		fields[FieldSourceCategory] = trnType
	}

	return Row{Number: number, Fields: fields}
}
