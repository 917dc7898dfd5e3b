// Package models defines the domain entities for expense approval.
package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxChainNameLength is the maximum allowed length for chain names.
const MaxChainNameLength = 100

// MaxAmountScale is the number of decimal places a chain bound may carry.
// Bounds are stored as DECIMAL(14, 2).
const MaxAmountScale = 2

var amountLimit = decimal.New(1, 12)

// ApprovalChain is a workspace rule naming the approvers an expense must pass
// through when it matches the chain's amount, category and receipt constraints.
type ApprovalChain struct {
	id               string
	workspaceID      string
	name             string
	description      string
	minAmount        *decimal.Decimal
	maxAmount        *decimal.Decimal
	categoryIDs      []string
	requiresReceipt  bool
	approverSequence []string
	isActive         bool
	createdAt        time.Time
	updatedAt        time.Time
}

// ApprovalChainParams holds the authoring input for a new chain.
type ApprovalChainParams struct {
	WorkspaceID      string
	Name             string
	Description      string
	MinAmount        *decimal.Decimal
	MaxAmount        *decimal.Decimal
	CategoryIDs      []string
	RequiresReceipt  bool
	ApproverSequence []string
}

// ApprovalChainRecord is the flat persisted form of a chain.
type ApprovalChainRecord struct {
	ID               string
	WorkspaceID      string
	Name             string
	Description      string
	MinAmount        *decimal.Decimal
	MaxAmount        *decimal.Decimal
	CategoryIDs      []string
	RequiresReceipt  bool
	ApproverSequence []string
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ChainCriteria are the expense attributes a chain is matched against.
type ChainCriteria struct {
	WorkspaceID string
	Amount      decimal.Decimal
	CategoryID  *string
	HasReceipt  bool
}

// NewApprovalChain validates params and creates an active chain.
func NewApprovalChain(params ApprovalChainParams, now time.Time) (*ApprovalChain, error) {
	workspaceID, err := CanonicalID("workspace_id", params.WorkspaceID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.Name)
	if err := validateChainName(name); err != nil {
		return nil, err
	}
	sequence, err := canonicalApproverSequence(params.ApproverSequence)
	if err != nil {
		return nil, err
	}
	categoryIDs, err := CanonicalIDList("category_id", params.CategoryIDs)
	if err != nil {
		return nil, err
	}
	if err := validateAmountRange(params.MinAmount, params.MaxAmount); err != nil {
		return nil, err
	}

	return &ApprovalChain{
		id:               NewID(),
		workspaceID:      workspaceID,
		name:             name,
		description:      strings.TrimSpace(params.Description),
		minAmount:        copyDecimal(params.MinAmount),
		maxAmount:        copyDecimal(params.MaxAmount),
		categoryIDs:      categoryIDs,
		requiresReceipt:  params.RequiresReceipt,
		approverSequence: sequence,
		isActive:         true,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// ReconstituteApprovalChain rebuilds a chain from persisted state. Identifier
// formats are trusted, but the structural invariants are still enforced.
func ReconstituteApprovalChain(rec ApprovalChainRecord) (*ApprovalChain, error) {
	if rec.ID == "" || rec.WorkspaceID == "" {
		return nil, NewInvalidApprovalChain("missing identity")
	}
	if len(rec.ApproverSequence) == 0 {
		return nil, NewInvalidApprovalChain("approver sequence is empty")
	}
	if err := validateAmountRange(rec.MinAmount, rec.MaxAmount); err != nil {
		return nil, err
	}
	return &ApprovalChain{
		id:               rec.ID,
		workspaceID:      rec.WorkspaceID,
		name:             rec.Name,
		description:      rec.Description,
		minAmount:        copyDecimal(rec.MinAmount),
		maxAmount:        copyDecimal(rec.MaxAmount),
		categoryIDs:      slices.Clone(rec.CategoryIDs),
		requiresReceipt:  rec.RequiresReceipt,
		approverSequence: slices.Clone(rec.ApproverSequence),
		isActive:         rec.IsActive,
		createdAt:        rec.CreatedAt,
		updatedAt:        rec.UpdatedAt,
	}, nil
}

// Record returns the flat persisted form of the chain.
func (c *ApprovalChain) Record() ApprovalChainRecord {
	return ApprovalChainRecord{
		ID:               c.id,
		WorkspaceID:      c.workspaceID,
		Name:             c.name,
		Description:      c.description,
		MinAmount:        copyDecimal(c.minAmount),
		MaxAmount:        copyDecimal(c.maxAmount),
		CategoryIDs:      slices.Clone(c.categoryIDs),
		RequiresReceipt:  c.requiresReceipt,
		ApproverSequence: slices.Clone(c.approverSequence),
		IsActive:         c.isActive,
		CreatedAt:        c.createdAt,
		UpdatedAt:        c.updatedAt,
	}
}

func (c *ApprovalChain) ID() string { return c.id }
func (c *ApprovalChain) WorkspaceID() string { return c.workspaceID }
func (c *ApprovalChain) Name() string { return c.name }
func (c *ApprovalChain) Description() string { return c.description }
func (c *ApprovalChain) MinAmount() *decimal.Decimal { return copyDecimal(c.minAmount) }
func (c *ApprovalChain) MaxAmount() *decimal.Decimal { return copyDecimal(c.maxAmount) }
func (c *ApprovalChain) CategoryIDs() []string { return slices.Clone(c.categoryIDs) }
func (c *ApprovalChain) RequiresReceipt() bool { return c.requiresReceipt }
func (c *ApprovalChain) ApproverSequence() []string { return slices.Clone(c.approverSequence) }
func (c *ApprovalChain) IsActive() bool { return c.isActive }
func (c *ApprovalChain) CreatedAt() time.Time { return c.createdAt }
func (c *ApprovalChain) UpdatedAt() time.Time { return c.updatedAt }

// IncludesApprover reports whether userID, in any spelling, appears anywhere
// in the sequence.
func (c *ApprovalChain) IncludesApprover(userID string) bool {
	return slices.ContainsFunc(c.approverSequence, func(id string) bool {
		return SameID(id, userID)
	})
}

// Matches reports whether the chain applies to an expense. Workspace scoping
// is the caller's concern.
func (c *ApprovalChain) Matches(criteria ChainCriteria) bool {
	if !c.isActive {
		return false
	}
	if c.minAmount != nil && criteria.Amount.LessThan(*c.minAmount) {
		return false
	}
	if c.maxAmount != nil && criteria.Amount.GreaterThan(*c.maxAmount) {
		return false
	}
	if len(c.categoryIDs) > 0 {
		if criteria.CategoryID == nil {
			return false
		}
		categoryID := *criteria.CategoryID
		if !slices.ContainsFunc(c.categoryIDs, func(id string) bool { return SameID(id, categoryID) }) {
			return false
		}
	}
	if c.requiresReceipt && !criteria.HasReceipt {
		return false
	}
	return true
}

// FirstMatchingChain returns the first chain in candidate order that matches
// the criteria and belongs to the criteria's workspace, or nil.
func FirstMatchingChain(chains []*ApprovalChain, criteria ChainCriteria) *ApprovalChain {
	for _, chain := range chains {
		if chain.workspaceID != criteria.WorkspaceID {
			continue
		}
		if chain.Matches(criteria) {
			return chain
		}
	}
	return nil
}

// Rename changes the chain name.
func (c *ApprovalChain) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if err := validateChainName(name); err != nil {
		return err
	}
	c.name = name
	c.updatedAt = now
	return nil
}

// Describe replaces the optional description.
func (c *ApprovalChain) Describe(description string, now time.Time) {
	c.description = strings.TrimSpace(description)
	c.updatedAt = now
}

// SetAmountRange replaces both bounds. Either may be nil.
func (c *ApprovalChain) SetAmountRange(minAmount, maxAmount *decimal.Decimal, now time.Time) error {
	if err := validateAmountRange(minAmount, maxAmount); err != nil {
		return err
	}
	c.minAmount = copyDecimal(minAmount)
	c.maxAmount = copyDecimal(maxAmount)
	c.updatedAt = now
	return nil
}

// SetCategories replaces the category allow-list. An empty list removes the restriction.
func (c *ApprovalChain) SetCategories(categoryIDs []string, now time.Time) error {
	canonical, err := CanonicalIDList("category_id", categoryIDs)
	if err != nil {
		return err
	}
	c.categoryIDs = canonical
	c.updatedAt = now
	return nil
}

// SetRequiresReceipt toggles the receipt constraint.
func (c *ApprovalChain) SetRequiresReceipt(required bool, now time.Time) {
	c.requiresReceipt = required
	c.updatedAt = now
}

// SetApproverSequence replaces the ordered approver list. Workflows already
// built from the chain keep their own steps.
func (c *ApprovalChain) SetApproverSequence(sequence []string, now time.Time) error {
	canonical, err := canonicalApproverSequence(sequence)
	if err != nil {
		return err
	}
	c.approverSequence = canonical
	c.updatedAt = now
	return nil
}

// Activate makes the chain eligible for matching.
func (c *ApprovalChain) Activate(now time.Time) {
	c.isActive = true
	c.updatedAt = now
}

// Deactivate removes the chain from matching.
func (c *ApprovalChain) Deactivate(now time.Time) {
	c.isActive = false
	c.updatedAt = now
}

func validateChainName(name string) error {
	if name == "" {
		return NewInvalidApprovalChain("name is required")
	}
	if len(name) > MaxChainNameLength {
		return NewInvalidApprovalChain("name is too long")
	}
	return nil
}

// canonicalApproverSequence allows the same approver to appear more than
// once; each occurrence becomes its own step.
func canonicalApproverSequence(sequence []string) ([]string, error) {
	if len(sequence) == 0 {
		return nil, NewInvalidApprovalChain("approver sequence must contain at least one approver")
	}
	return CanonicalIDList("approver_id", sequence)
}

func validateAmountRange(minAmount, maxAmount *decimal.Decimal) error {
	if err := validateBound("minimum", minAmount); err != nil {
		return err
	}
	if err := validateBound("maximum", maxAmount); err != nil {
		return err
	}
	if minAmount != nil && maxAmount != nil && minAmount.GreaterThan(*maxAmount) {
		return NewInvalidApprovalChain("minimum amount exceeds maximum amount")
	}
	return nil
}

func validateBound(which string, amount *decimal.Decimal) error {
	switch {
	case amount == nil:
		return nil
	case amount.IsNegative():
		return NewInvalidApprovalChain(which + " amount cannot be negative")
	case !amount.Equal(amount.Round(MaxAmountScale)):
		return NewInvalidApprovalChain(fmt.Sprintf("%s amount has more than %d decimal places", which, MaxAmountScale))
	case amount.GreaterThanOrEqual(amountLimit):
		return NewInvalidApprovalChain(which + " amount is too large")
	}
	return nil
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
