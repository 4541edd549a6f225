package ingest

import (
	"fmt"
	"sort"
	"strings"

	"brigade/internal/config"
	"brigade/internal/models"
	"brigade/internal/reconcile"
)

// RejectReason distinguishes why a table could not be classified
type RejectReason string

const (
	// Classification reject reasons
	ReasonAmbiguous    RejectReason = "ambiguous"
	ReasonIncompatible RejectReason = "incompatible"
)

// ClassificationError reports that a table could not be confidently
// classified. The file is rejected with an itemized explanation; the
// classifier never guesses.
type ClassificationError struct {
	Reason  RejectReason
	File    string
	Details []string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("cannot classify %s (%s): %s", e.File, e.Reason, strings.Join(e.Details, "; "))
}

// Classification is the accepted outcome: the inferred file kind, the
// column-role mapping, and per-role confidence for drill-down.
type Classification struct {
	Kind       models.FileKind
	Columns    map[models.ColumnRole]int
	Confidence float64
	RoleScores map[models.ColumnRole]float64
}

// HasRole reports whether a role was mapped to a column.
func (c *Classification) HasRole(role models.ColumnRole) bool {
	_, ok := c.Columns[role]
	return ok
}

// Classifier infers the semantic type of an arbitrary table by scoring
// candidate column-role assignments against a role vocabulary and
// value-pattern validation.
type Classifier struct {
	cfg config.ClassifierConfig
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg config.ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// roleVocabulary maps each role to the header words observed for it across
// common POS, inventory, and invoice exports.
var roleVocabulary = map[models.ColumnRole][]string{
	models.RoleDate:         {"date", "order date", "sale date", "timestamp", "time", "transaction date", "invoice date", "day"},
	models.RoleItemName:     {"item", "item name", "product", "product name", "menu item", "dish", "name", "description", "ingredient"},
	models.RoleQuantity:     {"quantity", "qty", "count", "units", "amount sold", "on hand", "stock", "quantity on hand", "units sold"},
	models.RolePrice:        {"price", "unit price", "item price", "each", "price per unit"},
	models.RoleTotal:        {"total", "total amount", "gross", "net sales", "line total", "subtotal", "revenue", "sales"},
	models.RoleSupplierName: {"supplier", "vendor", "supplier name", "vendor name", "distributor"},
	models.RoleUnitCost:     {"unit cost", "cost", "cost per unit", "invoice cost", "purchase price"},
	models.RoleExpiryDate:   {"expiry", "expiry date", "expiration", "expiration date", "best before", "use by"},
	models.RoleUnit:         {"unit", "uom", "unit of measure", "measure"},
}

// patternRoles must additionally pass value-pattern validation on sampled
// cells before a mapping is accepted.
var patternRoles = map[models.ColumnRole]bool{
	models.RoleDate:       true,
	models.RoleQuantity:   true,
	models.RolePrice:      true,
	models.RoleTotal:      true,
	models.RoleUnitCost:   true,
	models.RoleExpiryDate: true,
}

// snapshotHeaderWords mark inventory-count style tables even without an
// expiry column.
var snapshotHeaderWords = []string{"on hand", "in stock", "stock", "inventory", "par level", "counted"}

// Classify infers the file kind and the column-role mapping of a raw table.
// Confidence below the configured threshold is a rejection, never a guess.
func (c *Classifier) Classify(table *models.RawTable) (*Classification, error) {
	if len(table.Header) == 0 {
		return nil, &ClassificationError{
			Reason:  ReasonIncompatible,
			File:    table.SourceFile,
			Details: []string{"table has no header row"},
		}
	}

	assignment, scores := c.assignRoles(table)
	kind, kindDetails := chooseKind(table, assignment, scores)
	if kind == models.FileKindUnknown {
		return nil, &ClassificationError{
			Reason:  ReasonIncompatible,
			File:    table.SourceFile,
			Details: append(kindDetails, describeAssignment(assignment, scores)...),
		}
	}

	confidence := meanScore(scores)
	if confidence < c.cfg.MinConfidence {
		// The filename hint never rescues a sub-threshold mapping.
		return nil, &ClassificationError{
			Reason: ReasonAmbiguous,
			File:   table.SourceFile,
			Details: append([]string{
				fmt.Sprintf("best guess %s scored %.2f, below threshold %.2f", kind, confidence, c.cfg.MinConfidence),
			}, describeAssignment(assignment, scores)...),
		}
	}
	confidence += c.filenameBoost(table.SourceFile, kind)
	if confidence > 1 {
		confidence = 1
	}

	return &Classification{
		Kind:       kind,
		Columns:    assignment,
		Confidence: confidence,
		RoleScores: scores,
	}, nil
}

type rolePair struct {
	role  models.ColumnRole
	col   int
	score float64
}

// assignRoles scores every (column, role) pair and greedily assigns the best
// pairs, one role per column and one column per role.
func (c *Classifier) assignRoles(table *models.RawTable) (map[models.ColumnRole]int, map[models.ColumnRole]float64) {
	var pairs []rolePair
	for col, header := range table.Header {
		if strings.TrimSpace(header) == "" {
			continue
		}
		for role := range roleVocabulary {
			score, ok := c.scorePair(table, col, header, role)
			if ok {
				pairs = append(pairs, rolePair{role: role, col: col, score: score})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		if pairs[i].role != pairs[j].role {
			return pairs[i].role < pairs[j].role
		}
		return pairs[i].col < pairs[j].col
	})

	assignment := make(map[models.ColumnRole]int)
	scores := make(map[models.ColumnRole]float64)
	usedCols := make(map[int]bool)
	for _, p := range pairs {
		if usedCols[p.col] {
			continue
		}
		if _, taken := assignment[p.role]; taken {
			continue
		}
		assignment[p.role] = p.col
		scores[p.role] = p.score
		usedCols[p.col] = true
	}
	return assignment, scores
}

// scorePair combines header-vocabulary similarity with value-pattern
// validation. Pattern roles must parse in at least MinValueMatch of sampled
// non-empty cells; text roles must be mostly non-numeric.
func (c *Classifier) scorePair(table *models.RawTable, col int, header string, role models.ColumnRole) (float64, bool) {
	hs := headerScore(header, role)
	if hs == 0 {
		return 0, false
	}

	sampled, matched := c.sampleColumn(table, col, role)
	if sampled == 0 {
		// Header-only evidence for an empty column.
		return hs * 0.5, true
	}
	fraction := float64(matched) / float64(sampled)
	if patternRoles[role] && fraction < c.cfg.MinValueMatch {
		// An exact header with at least one parsable cell keeps the
		// role at its penalized score; the rows that fail to parse
		// surface as row gaps during ingestion.
		if hs < 1 || matched == 0 {
			return 0, false
		}
	}
	return 0.5*hs + 0.5*fraction, true
}

// sampleColumn validates up to SampleRows non-empty cells of a column
// against the role's value pattern.
func (c *Classifier) sampleColumn(table *models.RawTable, col int, role models.ColumnRole) (sampled, matched int) {
	for row := 0; row < len(table.Rows) && sampled < c.cfg.SampleRows; row++ {
		cell := table.Cell(row, col)
		if cell == "" {
			continue
		}
		sampled++
		if cellMatchesRole(cell, role) {
			matched++
		}
	}
	return sampled, matched
}

func cellMatchesRole(cell string, role models.ColumnRole) bool {
	switch role {
	case models.RoleDate, models.RoleExpiryDate:
		_, ok := parseDate(cell)
		return ok
	case models.RoleQuantity:
		v, ok := parseFloat(cell)
		return ok && v >= 0
	case models.RolePrice, models.RoleTotal, models.RoleUnitCost:
		_, ok := parseCurrency(cell)
		return ok
	case models.RoleItemName, models.RoleSupplierName:
		return looksTextual(cell)
	case models.RoleUnit:
		return looksTextual(cell) && len(cell) <= 16
	}
	return false
}

// headerScore measures how closely a header string matches the role's
// vocabulary: exact match, containment, then shared tokens.
func headerScore(header string, role models.ColumnRole) float64 {
	norm := reconcile.Normalize(header)
	if norm == "" {
		return 0
	}
	best := 0.0
	normTokens := strings.Fields(norm)
	for _, keyword := range roleVocabulary[role] {
		switch {
		case norm == keyword:
			return 1.0
		case strings.Contains(norm, keyword) || strings.Contains(keyword, norm):
			if best < 0.8 {
				best = 0.8
			}
		default:
			for _, tok := range normTokens {
				for _, kwTok := range strings.Fields(keyword) {
					if tok == kwTok && best < 0.6 {
						best = 0.6
					}
				}
			}
		}
	}
	return best
}

// chooseKind applies the role-subset rules: supplier name + cost marks a
// supplier invoice; quantity + expiry (or snapshot-style headers) marks an
// inventory count; item + quantity + money without supplier/expiry marks
// sales. Ties fall to the larger role-confidence sum.
func chooseKind(table *models.RawTable, assignment map[models.ColumnRole]int, scores map[models.ColumnRole]float64) (models.FileKind, []string) {
	has := func(role models.ColumnRole) bool { _, ok := assignment[role]; return ok }

	type candidate struct {
		kind  models.FileKind
		roles []models.ColumnRole
	}
	var candidates []candidate

	if has(models.RoleSupplierName) && has(models.RoleUnitCost) {
		candidates = append(candidates, candidate{models.FileKindSupplier,
			[]models.ColumnRole{models.RoleSupplierName, models.RoleUnitCost, models.RoleItemName, models.RoleQuantity, models.RoleDate}})
	}
	if has(models.RoleQuantity) && (has(models.RoleExpiryDate) || hasSnapshotHeaders(table)) {
		candidates = append(candidates, candidate{models.FileKindInventory,
			[]models.ColumnRole{models.RoleItemName, models.RoleQuantity, models.RoleExpiryDate, models.RoleUnit, models.RoleDate}})
	}
	if has(models.RoleItemName) && has(models.RoleQuantity) &&
		(has(models.RolePrice) || has(models.RoleTotal)) &&
		!has(models.RoleSupplierName) && !has(models.RoleExpiryDate) {
		candidates = append(candidates, candidate{models.FileKindSales,
			[]models.ColumnRole{models.RoleItemName, models.RoleQuantity, models.RolePrice, models.RoleTotal, models.RoleDate}})
	}

	if len(candidates) == 0 {
		return models.FileKindUnknown, []string{"no known file kind's required columns are present"}
	}

	best := candidates[0]
	bestSum := roleSum(best.roles, scores)
	for _, cand := range candidates[1:] {
		if sum := roleSum(cand.roles, scores); sum > bestSum {
			best, bestSum = cand, sum
		}
	}
	return best.kind, nil
}

func roleSum(roles []models.ColumnRole, scores map[models.ColumnRole]float64) float64 {
	sum := 0.0
	for _, role := range roles {
		sum += scores[role]
	}
	return sum
}

func hasSnapshotHeaders(table *models.RawTable) bool {
	for _, header := range table.Header {
		norm := reconcile.Normalize(header)
		for _, word := range snapshotHeaderWords {
			if strings.Contains(norm, word) {
				return true
			}
		}
	}
	return false
}

// filenameBoost grants a bounded confidence bonus when the file name itself
// names the detected kind. The boost alone can never carry a table past the
// acceptance threshold.
func (c *Classifier) filenameBoost(filename string, kind models.FileKind) float64 {
	name := strings.ToLower(filename)
	hints := map[models.FileKind][]string{
		models.FileKindSales:     {"sales", "transactions", "orders", "pos"},
		models.FileKindInventory: {"inventory", "stock", "count"},
		models.FileKindSupplier:  {"supplier", "vendor", "invoice", "purchase"},
	}
	for _, hint := range hints[kind] {
		if strings.Contains(name, hint) {
			return c.cfg.FilenameHintBoost
		}
	}
	return 0
}

func meanScore(scores map[models.ColumnRole]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func describeAssignment(assignment map[models.ColumnRole]int, scores map[models.ColumnRole]float64) []string {
	roles := make([]models.ColumnRole, 0, len(assignment))
	for role := range assignment {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	var out []string
	for _, role := range roles {
		out = append(out, fmt.Sprintf("column %d mapped to %s (%.2f)", assignment[role], role, scores[role]))
	}
	if len(out) == 0 {
		out = append(out, "no columns could be mapped to any known role")
	}
	return out
}
