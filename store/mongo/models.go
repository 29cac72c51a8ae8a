package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/stockwise/history"
	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/requirement"
	"github.com/xraph/stockwise/types"
	"github.com/xraph/stockwise/usage"
	"github.com/xraph/stockwise/user"
)

// ==================== Item models ====================

type itemModel struct {
	grove.BaseModel `grove:"table:stockwise_items"`

	ID          string       `grove:"id,pk"       bson:"_id"`
	ItemID      string       `grove:"item_id"     bson:"item_id"`
	Description string       `grove:"description" bson:"description"`
	Material    string       `grove:"material"    bson:"material"`
	Comment     string       `grove:"comment"     bson:"comment"`
	History     []entryModel `grove:"history"     bson:"history"`
	MinLevel    int          `grove:"min_level"   bson:"min_level"`
	MaxLevel    int          `grove:"max_level"   bson:"max_level"`
	Version     int64        `grove:"version"     bson:"version"`
	CreatedAt   time.Time    `grove:"created_at"  bson:"created_at"`
	UpdatedAt   time.Time    `grove:"updated_at"  bson:"updated_at"`
}

// entryModel stores a ledger entry structurally. Raw is only set for
// entries imported from free-text history.
type entryModel struct {
	Actor         string    `bson:"actor"`
	Delta         int       `bson:"delta"`
	Label         string    `bson:"label"`
	Timestamp     time.Time `bson:"timestamp"`
	CorrelationID string    `bson:"correlation_id,omitempty"`
	Raw           string    `bson:"raw,omitempty"`
}

func toEntryModels(entries []history.Entry) []entryModel {
	out := make([]entryModel, len(entries))
	for i, e := range entries {
		out[i] = entryModel{
			Actor:         e.Actor,
			Delta:         e.Delta,
			Label:         string(e.Label),
			Timestamp:     e.Timestamp,
			CorrelationID: e.CorrelationID,
			Raw:           e.Raw,
		}
	}
	return out
}

func fromEntryModels(models []entryModel) []history.Entry {
	out := make([]history.Entry, len(models))
	for i, m := range models {
		out[i] = history.Entry{
			Actor:         m.Actor,
			Delta:         m.Delta,
			Label:         history.Label(m.Label),
			Timestamp:     m.Timestamp.UTC(),
			CorrelationID: m.CorrelationID,
			Raw:           m.Raw,
		}
	}
	return out
}

func toItemModel(it *item.Item) *itemModel {
	return &itemModel{
		ID:          it.ID.String(),
		ItemID:      it.ItemID,
		Description: it.Description,
		Material:    it.Material,
		Comment:     it.Comment,
		History:     toEntryModels(it.History),
		MinLevel:    it.MinLevel,
		MaxLevel:    it.MaxLevel,
		Version:     it.Version,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}
}

func fromItemModel(m *itemModel) (*item.Item, error) {
	itemID, err := id.ParseItemID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse item id %q: %w", m.ID, err)
	}
	return &item.Item{
		Entity:      types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:          itemID,
		ItemID:      m.ItemID,
		Description: m.Description,
		Material:    m.Material,
		Comment:     m.Comment,
		History:     fromEntryModels(m.History),
		MinLevel:    m.MinLevel,
		MaxLevel:    m.MaxLevel,
		Version:     m.Version,
	}, nil
}

// ==================== Receipt models ====================

type receiptModel struct {
	grove.BaseModel `grove:"table:stockwise_receipts"`

	ID           string             `grove:"id,pk"         bson:"_id"`
	PONumber     string             `grove:"po_number"     bson:"po_number"`
	DateReceived time.Time          `grove:"date_received" bson:"date_received"`
	Items        []receiptLineModel `grove:"items"         bson:"items"`
	ItemRefs     []string           `grove:"item_refs"     bson:"item_refs"`
	CreatedAt    time.Time          `grove:"created_at"    bson:"created_at"`
	UpdatedAt    time.Time          `grove:"updated_at"    bson:"updated_at"`
}

type receiptLineModel struct {
	ItemID           string `bson:"item_id"`
	Description      string `bson:"description"`
	QuantityReceived int    `bson:"quantity_received"`
}

func toReceiptModel(r *receipt.Receipt) *receiptModel {
	lines := make([]receiptLineModel, len(r.Items))
	for i, l := range r.Items {
		lines[i] = receiptLineModel{ItemID: l.ItemID, Description: l.Description, QuantityReceived: l.QuantityReceived}
	}
	return &receiptModel{
		ID:           r.ID.String(),
		PONumber:     r.PONumber,
		DateReceived: r.DateReceived.Time(),
		Items:        lines,
		ItemRefs:     id.Strings(r.ItemRefs),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func fromReceiptModel(m *receiptModel) (*receipt.Receipt, error) {
	receiptID, err := id.ParseReceiptID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse receipt id %q: %w", m.ID, err)
	}
	refs, err := id.ParseAll(m.ItemRefs)
	if err != nil {
		return nil, fmt.Errorf("parse item refs of %s: %w", m.ID, err)
	}
	lines := make([]receipt.Line, len(m.Items))
	for i, l := range m.Items {
		lines[i] = receipt.Line{ItemID: l.ItemID, Description: l.Description, QuantityReceived: l.QuantityReceived}
	}
	return &receipt.Receipt{
		Entity:       types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:           receiptID,
		PONumber:     m.PONumber,
		DateReceived: dateOf(m.DateReceived),
		Items:        lines,
		ItemRefs:     refs,
	}, nil
}

// ==================== Usage models ====================

type usageModel struct {
	grove.BaseModel `grove:"table:stockwise_usages"`

	ID        string           `grove:"id,pk"      bson:"_id"`
	JobNumber string           `grove:"job_number" bson:"job_number"`
	DateUsed  time.Time        `grove:"date_used"  bson:"date_used"`
	Items     []usageLineModel `grove:"items"      bson:"items"`
	ItemRefs  []string         `grove:"item_refs"  bson:"item_refs"`
	CreatedAt time.Time        `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time        `grove:"updated_at" bson:"updated_at"`
}

type usageLineModel struct {
	ItemID       string `bson:"item_id"`
	Description  string `bson:"description"`
	QuantityUsed int    `bson:"quantity_used"`
}

func toUsageModel(u *usage.Usage) *usageModel {
	lines := make([]usageLineModel, len(u.Items))
	for i, l := range u.Items {
		lines[i] = usageLineModel{ItemID: l.ItemID, Description: l.Description, QuantityUsed: l.QuantityUsed}
	}
	return &usageModel{
		ID:        u.ID.String(),
		JobNumber: u.JobNumber,
		DateUsed:  u.DateUsed.Time(),
		Items:     lines,
		ItemRefs:  id.Strings(u.ItemRefs),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func fromUsageModel(m *usageModel) (*usage.Usage, error) {
	usageID, err := id.ParseUsageID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse usage id %q: %w", m.ID, err)
	}
	refs, err := id.ParseAll(m.ItemRefs)
	if err != nil {
		return nil, fmt.Errorf("parse item refs of %s: %w", m.ID, err)
	}
	lines := make([]usage.Line, len(m.Items))
	for i, l := range m.Items {
		lines[i] = usage.Line{ItemID: l.ItemID, Description: l.Description, QuantityUsed: l.QuantityUsed}
	}
	return &usage.Usage{
		Entity:    types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:        usageID,
		JobNumber: m.JobNumber,
		DateUsed:  dateOf(m.DateUsed),
		Items:     lines,
		ItemRefs:  refs,
	}, nil
}

// ==================== Requirement models ====================

type requirementModel struct {
	grove.BaseModel `grove:"table:stockwise_requirements"`

	ID        string                 `grove:"id,pk"      bson:"_id"`
	JobNumber string                 `grove:"job_number" bson:"job_number"`
	NeededBy  time.Time              `grove:"needed_by"  bson:"needed_by"`
	Items     []requirementLineModel `grove:"items"      bson:"items"`
	CreatedAt time.Time              `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time              `grove:"updated_at" bson:"updated_at"`
}

type requirementLineModel struct {
	ItemID         string `bson:"item_id"`
	Description    string `bson:"description"`
	QuantityNeeded int    `bson:"quantity_needed"`
}

func toRequirementModel(r *requirement.Requirement) *requirementModel {
	lines := make([]requirementLineModel, len(r.Items))
	for i, l := range r.Items {
		lines[i] = requirementLineModel{ItemID: l.ItemID, Description: l.Description, QuantityNeeded: l.QuantityNeeded}
	}
	return &requirementModel{
		ID:        r.ID.String(),
		JobNumber: r.JobNumber,
		NeededBy:  r.NeededBy.Time(),
		Items:     lines,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func fromRequirementModel(m *requirementModel) (*requirement.Requirement, error) {
	reqID, err := id.ParseRequirementID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse requirement id %q: %w", m.ID, err)
	}
	lines := make([]requirement.Line, len(m.Items))
	for i, l := range m.Items {
		lines[i] = requirement.Line{ItemID: l.ItemID, Description: l.Description, QuantityNeeded: l.QuantityNeeded}
	}
	return &requirement.Requirement{
		Entity:    types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:        reqID,
		JobNumber: m.JobNumber,
		NeededBy:  dateOf(m.NeededBy),
		Items:     lines,
	}, nil
}

// ==================== User models ====================

type userModel struct {
	grove.BaseModel `grove:"table:stockwise_users"`

	ID                 string    `grove:"id,pk"                bson:"_id"`
	UserID             string    `grove:"user_id"              bson:"user_id"`
	Email              string    `grove:"email"                bson:"email"`
	PasswordHash       string    `grove:"password_hash"        bson:"password_hash"`
	SecurityQuestion   string    `grove:"security_question"    bson:"security_question"`
	SecurityAnswerHash string    `grove:"security_answer_hash" bson:"security_answer_hash"`
	CreatedAt          time.Time `grove:"created_at"           bson:"created_at"`
	UpdatedAt          time.Time `grove:"updated_at"           bson:"updated_at"`
}

func toUserModel(u *user.User) *userModel {
	return &userModel{
		ID:                 u.ID.String(),
		UserID:             u.UserID,
		Email:              u.Email,
		PasswordHash:       u.PasswordHash,
		SecurityQuestion:   u.SecurityQuestion,
		SecurityAnswerHash: u.SecurityAnswerHash,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func fromUserModel(m *userModel) (*user.User, error) {
	userID, err := id.ParseUserID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", m.ID, err)
	}
	return &user.User{
		Entity:             types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:                 userID,
		UserID:             m.UserID,
		Email:              m.Email,
		PasswordHash:       m.PasswordHash,
		SecurityQuestion:   m.SecurityQuestion,
		SecurityAnswerHash: m.SecurityAnswerHash,
	}, nil
}

func dateOf(t time.Time) types.Date {
	if t.IsZero() {
		return types.Date{}
	}
	return types.NewDate(t)
}
