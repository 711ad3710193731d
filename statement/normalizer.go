/*
normalizer.go - Raw statement row to canonical fee record

PURPOSE:
  Turns one raw import row (string-keyed, as exported by the marketplace)
  into a canonical FeeRecord, or skips it. Processing short-circuits to
  "skip" at the first failed step; skips are counted, never errors.

PIPELINE (in order):
  1. Screen out informational rows (sale/deposit, empty type or title)
  2. Extract the amount ("amount" column, falling back to "fees & taxes"
     when amount is the "--" placeholder); zero amounts are skipped
  3. Normalize the date (see dates.go); sentinel dates are skipped
  4. Determine credit direction (type "credit" or "credit" in the title);
     the amount's sign is removed - direction lives on IsCredit only
  5. Refunds: resolve the order from the "#<digits>" in the title, mark it
     refunded and zero its locked-in cost; refunds for unknown orders are
     skipped (nothing to reconcile against)
  6. Classify via the ordered rule table (rules.go)
  7. Best-effort order attribution from title+info (shop-level fees
     legitimately have none)
  8. Compute the dedup hash

PURITY:
  The only side effects are the order lookup and refund marking in step 5.
  No other I/O, no partial writes.

DEDUP HASH:
  SHA-256 over "isoDate|type|title|fees&taxes|net", with "|info" appended
  only when info is non-empty. Shop-level fees with identical fields and no
  info legitimately recur within a statement and are MEANT to collide;
  listing-specific fees carry distinguishing info and must not.
*/
package statement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pricing-engine/engine"
)

// Skip reasons reported alongside counted skips.
const (
	SkipInformational = "informational row"
	SkipEmptyFields   = "empty type or title"
	SkipNoAmount      = "missing or unparseable amount"
	SkipZeroAmount    = "zero amount"
	SkipBadDate       = "unrecognized date"
	SkipUnknownOrder  = "refund for unknown order"
	SkipUnclassified  = "unclassifiable row"
)

// Normalizer converts raw rows into fee records. It needs the order
// directory for refund reconciliation and order attribution.
type Normalizer struct {
	Orders engine.OrderDirectory
	now    func() time.Time
}

func NewNormalizer(orders engine.OrderDirectory) *Normalizer {
	return &Normalizer{Orders: orders, now: time.Now}
}

// Normalize processes one raw row. It returns the canonical record, or a
// non-empty skip reason when the row is not actionable. The error return is
// reserved for collaborator failures (order lookup), never for bad data.
func (n *Normalizer) Normalize(ctx context.Context, row engine.RawRow) (*engine.FeeRecord, string, error) {
	typRaw := strings.TrimSpace(field(row, "type"))
	titleRaw := strings.TrimSpace(field(row, "title"))
	typ := strings.ToLower(typRaw)
	title := strings.ToLower(titleRaw)

	// Step 1: screening.
	if typRaw == "" || titleRaw == "" {
		return nil, SkipEmptyFields, nil
	}
	if typ == "sale" || typ == "deposit" {
		return nil, SkipInformational, nil
	}

	// Step 2: amount extraction with fees&taxes fallback.
	amountRaw := strings.TrimSpace(field(row, "amount"))
	feesRaw := strings.TrimSpace(field(row, "fees & taxes"))
	netRaw := strings.TrimSpace(field(row, "net"))
	info := strings.TrimSpace(field(row, "info"))

	source := amountRaw
	if source == "" || source == "--" {
		source = feesRaw
	}
	amount, ok := ParseAmount(source)
	if !ok {
		return nil, SkipNoAmount, nil
	}
	if amount.IsZero() {
		return nil, SkipZeroAmount, nil
	}

	// Step 3: date normalization via the fuzzy-matched date column.
	dateCol, found := FindDateColumn(row)
	if !found {
		return nil, SkipBadDate, nil
	}
	chargedDate := NormalizeDate(row[dateCol])
	if IsSentinelDate(chargedDate) {
		return nil, SkipBadDate, nil
	}

	// Step 4: credit direction; the value's sign is always discarded.
	isCredit := typ == "credit" || strings.Contains(title, "credit")
	amount = amount.Abs()

	rec := engine.FeeRecord{
		Amount:      amount,
		IsCredit:    isCredit,
		Description: titleRaw,
		ChargedDate: chargedDate,
		Hash:        Hash(chargedDate, typRaw, titleRaw, feesRaw, netRaw, info),
		CreatedAt:   n.now().UTC(),
	}

	// Step 5: refunds flip the referenced sale and zero its locked-in cost.
	if typ == "refund" {
		orderID, err := n.resolveRefundOrder(ctx, titleRaw)
		if err != nil {
			return nil, "", err
		}
		if orderID == "" {
			return nil, SkipUnknownOrder, nil
		}
		if err := n.Orders.MarkRefunded(ctx, orderID); err != nil {
			return nil, "", fmt.Errorf("failed to mark order %s refunded: %w", orderID, err)
		}
		if err := n.Orders.ZeroLockedCost(ctx, orderID); err != nil {
			return nil, "", fmt.Errorf("failed to zero locked cost for order %s: %w", orderID, err)
		}
		rec.OrderID = orderID
		rec.Type = engine.FeeRefund
		return &rec, "", nil
	}

	// Step 6: rule-table classification.
	feeType, classified := MapFeeType(typ, title, isCredit)
	if !classified {
		return nil, SkipUnclassified, nil
	}
	rec.Type = feeType

	// Step 7: best-effort order attribution. Absence is fine.
	orderID, err := n.resolveOrderRef(ctx, titleRaw+" "+info)
	if err != nil {
		return nil, "", err
	}
	rec.OrderID = orderID

	return &rec, "", nil
}

// =============================================================================
// AMOUNT PARSING
// =============================================================================

// amountJunk strips currency symbols, non-breaking-space artifacts, thousands
// separators and anything else that is not digit, minus or decimal point.
var amountJunk = regexp.MustCompile(`[^0-9.\-]`)

// ParseAmount cleans and parses a statement money value.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	cleaned := amountJunk.ReplaceAllString(raw, "")
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// =============================================================================
// ORDER REFERENCE EXTRACTION
// =============================================================================

var (
	refundOrderRe = regexp.MustCompile(`#(\d+)`)
	orderRefRes   = []*regexp.Regexp{
		regexp.MustCompile(`(?i)order\s*#\s*(\d+)`),
		regexp.MustCompile(`(?i)refund\D*(\d+)`),
		regexp.MustCompile(`(?i)order:\s*(\d+)`),
	}
)

// resolveRefundOrder extracts the "#<digits>" order number from a refund
// title and resolves it. Returns "" when the title carries no number or the
// order is unknown.
func (n *Normalizer) resolveRefundOrder(ctx context.Context, title string) (string, error) {
	m := refundOrderRe.FindStringSubmatch(title)
	if m == nil {
		return "", nil
	}
	orderID, err := n.Orders.FindByExternalNumber(ctx, m[1])
	if err != nil {
		return "", fmt.Errorf("order lookup failed for #%s: %w", m[1], err)
	}
	return orderID, nil
}

// resolveOrderRef tries the known order-number patterns against free text.
func (n *Normalizer) resolveOrderRef(ctx context.Context, text string) (string, error) {
	for _, re := range orderRefRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		orderID, err := n.Orders.FindByExternalNumber(ctx, m[1])
		if err != nil {
			return "", fmt.Errorf("order lookup failed for %s: %w", m[1], err)
		}
		if orderID != "" {
			return orderID, nil
		}
	}
	return "", nil
}

// =============================================================================
// DEDUP HASH
// =============================================================================

// Hash fingerprints a source row. The info segment participates only when
// non-empty so that recurring shop-level fees dedupe while listing-specific
// fees do not collide.
func Hash(date time.Time, typ, title, feesAndTaxes, net, info string) string {
	payload := strings.Join([]string{
		date.Format("2006-01-02"), typ, title, feesAndTaxes, net,
	}, "|")
	if info != "" {
		payload += "|" + info
	}
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// field does a case-insensitive column lookup on a raw row.
func field(row engine.RawRow, name string) string {
	if v, ok := row[name]; ok {
		return v
	}
	for k, v := range row {
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return v
		}
	}
	return ""
}
