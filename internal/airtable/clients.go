package airtable

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ClientInfo is one row in the Clients table.
type ClientInfo struct {
	RecordID           string  `json:"recordId"`
	ClientCode         string  `json:"clientCode"`
	ClientName         string  `json:"clientName"`
	TeamsID            string  `json:"teamsId"`
	NextJobNumber      int     `json:"nextJobNumber"`
	MonthlyCommitted   float64 `json:"monthlyCommitted"`
	QuarterlyCommitted float64 `json:"quarterlyCommitted"`
	RolloverCredit     float64 `json:"rolloverCredit"`
	RolloverUse        string  `json:"rolloverUse"`
	CurrentQuarter     string  `json:"currentQuarter"`
	ThisMonth          float64 `json:"thisMonth"`
	ThisQuarter        float64 `json:"thisQuarter"`
}

// SpendSummary is the answer to "how much has this client used".
type SpendSummary struct {
	ClientCode     string  `json:"clientCode"`
	ClientName     string  `json:"clientName"`
	Period         string  `json:"period"`
	Committed      float64 `json:"committed"`
	Spent          float64 `json:"spent"`
	RolloverCredit float64 `json:"rolloverCredit,omitempty"`
	Available      float64 `json:"available"`
	PercentUsed    float64 `json:"percentUsed"`
}

// quarterKeys maps calendar quarters to the Clients-table column names.
var quarterKeys = [4]string{"JAN-MAR", "APR-JUN", "JUL-SEP", "OCT-DEC"}

func clientFromRecord(rec *Record) *ClientInfo {
	if rec == nil {
		return nil
	}
	return &ClientInfo{
		RecordID:           rec.ID,
		ClientCode:         stringField(rec, "Client code"),
		ClientName:         stringField(rec, "Clients"),
		TeamsID:            stringField(rec, "Teams ID"),
		NextJobNumber:      int(floatField(rec, "Next Job #")),
		MonthlyCommitted:   floatField(rec, "Monthly Committed"),
		QuarterlyCommitted: floatField(rec, "Quarterly Committed"),
		RolloverCredit:     floatField(rec, "Rollover Credit"),
		RolloverUse:        stringField(rec, "Rollover use"),
		CurrentQuarter:     stringField(rec, "Current Quarter"),
		ThisMonth:          floatField(rec, "This month"),
		ThisQuarter:        floatField(rec, "This Quarter"),
	}
}

// Clients wraps Clients-table operations.
type Clients struct {
	client *Client
	table  string
}

func NewClients(client *Client, table string) *Clients {
	return &Clients{client: client, table: table}
}

// divisionCodes expands umbrella codes to their divisions so a search for ONE
// also covers ONB and ONS.
func divisionCodes(code string) []string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "ONE" || code == "ONB" || code == "ONS" {
		return []string{"ONE", "ONB", "ONS"}
	}
	return []string{code}
}

// Search finds clients by code, by name fragment, or both.
func (c *Clients) Search(ctx context.Context, clientCode, searchTerm string) ([]ClientInfo, error) {
	var clauses []string
	if clientCode != "" {
		var codeClauses []string
		for _, code := range divisionCodes(clientCode) {
			codeClauses = append(codeClauses, fmt.Sprintf("{Client code}='%s'", escapeFormulaValue(code)))
		}
		if len(codeClauses) == 1 {
			clauses = append(clauses, codeClauses[0])
		} else {
			clauses = append(clauses, "OR("+strings.Join(codeClauses, ", ")+")")
		}
	}
	if searchTerm != "" {
		clauses = append(clauses, fmt.Sprintf(
			"FIND(LOWER('%s'), LOWER({Clients}))>0", escapeFormulaValue(searchTerm)))
	}
	formula := ""
	switch len(clauses) {
	case 0:
	case 1:
		formula = clauses[0]
	default:
		formula = "AND(" + strings.Join(clauses, ", ") + ")"
	}
	records, err := c.client.list(ctx, c.table, formula, 0)
	if err != nil {
		return nil, fmt.Errorf("search clients: %w", err)
	}
	results := make([]ClientInfo, 0, len(records))
	for i := range records {
		results = append(results, *clientFromRecord(&records[i]))
	}
	return results, nil
}

// FindByCode returns the client row for a code, or nil when the code is
// unknown.
func (c *Clients) FindByCode(ctx context.Context, clientCode string) (*ClientInfo, error) {
	if clientCode == "" {
		return nil, nil
	}
	formula := fmt.Sprintf("{Client code}='%s'", escapeFormulaValue(strings.ToUpper(clientCode)))
	rec, err := c.client.findFirst(ctx, c.table, formula)
	if err != nil {
		return nil, fmt.Errorf("find client %s: %w", clientCode, err)
	}
	return clientFromRecord(rec), nil
}

// Spend computes committed-versus-spent for a period. Accepted periods are
// this_month, this_quarter, last_quarter, or a quarter column name. Rollover
// credit is added to the committed pool when the client's "Rollover use"
// names the quarter being asked about.
func (c *Clients) Spend(ctx context.Context, clientCode, period string, now time.Time) (*SpendSummary, error) {
	info, err := c.FindByCode(ctx, clientCode)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}

	period = strings.TrimSpace(period)
	if period == "" {
		period = "this_month"
	}
	summary := &SpendSummary{
		ClientCode: info.ClientCode,
		ClientName: info.ClientName,
		Period:     period,
	}

	quarterKey := ""
	switch strings.ToLower(period) {
	case "this_month":
		summary.Committed = info.MonthlyCommitted
		summary.Spent = info.ThisMonth
	case "this_quarter":
		summary.Committed = info.QuarterlyCommitted
		summary.Spent = info.ThisQuarter
		quarterKey = quarterKeys[(int(now.Month())-1)/3]
	case "last_quarter":
		idx := ((int(now.Month())-1)/3 + 3) % 4
		quarterKey = quarterKeys[idx]
		summary.Committed = info.QuarterlyCommitted
		summary.Spent, err = c.quarterSpend(ctx, clientCode, quarterKey)
		if err != nil {
			return nil, err
		}
	default:
		upper := strings.ToUpper(period)
		for _, key := range quarterKeys {
			if upper == key {
				quarterKey = key
				break
			}
		}
		if quarterKey == "" {
			return nil, fmt.Errorf("unknown spend period %q", period)
		}
		summary.Period = quarterKey
		summary.Committed = info.QuarterlyCommitted
		summary.Spent, err = c.quarterSpend(ctx, clientCode, quarterKey)
		if err != nil {
			return nil, err
		}
	}

	if quarterKey != "" && strings.EqualFold(info.RolloverUse, quarterKey) && info.RolloverCredit > 0 {
		summary.RolloverCredit = info.RolloverCredit
		summary.Committed += info.RolloverCredit
	}
	summary.Available = summary.Committed - summary.Spent
	if summary.Committed > 0 {
		summary.PercentUsed = 100 * summary.Spent / summary.Committed
	}
	return summary, nil
}

func (c *Clients) quarterSpend(ctx context.Context, clientCode, quarterKey string) (float64, error) {
	formula := fmt.Sprintf("{Client code}='%s'", escapeFormulaValue(strings.ToUpper(clientCode)))
	rec, err := c.client.findFirst(ctx, c.table, formula)
	if err != nil {
		return 0, fmt.Errorf("read quarter spend: %w", err)
	}
	return floatField(rec, quarterKey), nil
}

// ReserveJobNumber reads the client's Next Job # counter, writes back the
// incremented value, and returns the reserved number as "CCC NNN". Two
// concurrent reservations can race the counter; the table is low-traffic
// enough that last-write-wins has been acceptable.
func (c *Clients) ReserveJobNumber(ctx context.Context, clientCode string) (string, error) {
	info, err := c.FindByCode(ctx, clientCode)
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", fmt.Errorf("unknown client code %q", clientCode)
	}
	next := info.NextJobNumber
	if next < 1 {
		next = 1
	}
	if err := c.client.patch(ctx, c.table, info.RecordID, map[string]any{"Next Job #": next + 1}); err != nil {
		return "", fmt.Errorf("reserve job number: %w", err)
	}
	return fmt.Sprintf("%s %03d", strings.ToUpper(clientCode), next), nil
}
