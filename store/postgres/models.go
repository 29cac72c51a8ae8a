package postgres

import (
	"encoding/json"
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

	ID          string          `grove:"id,pk"`
	ItemID      string          `grove:"item_id"`
	Description string          `grove:"description"`
	Material    string          `grove:"material"`
	Comment     string          `grove:"comment"`
	History     json.RawMessage `grove:"history,type:jsonb"`
	MinLevel    int             `grove:"min_level"`
	MaxLevel    int             `grove:"max_level"`
	Version     int64           `grove:"version"`
	CreatedAt   time.Time       `grove:"created_at"`
	UpdatedAt   time.Time       `grove:"updated_at"`
}

func toItemModel(it *item.Item) (*itemModel, error) {
	hist, err := json.Marshal(nonNil(it.History))
	if err != nil {
		return nil, fmt.Errorf("encode history of %s: %w", it.ItemID, err)
	}
	return &itemModel{
		ID:          it.ID.String(),
		ItemID:      it.ItemID,
		Description: it.Description,
		Material:    it.Material,
		Comment:     it.Comment,
		History:     hist,
		MinLevel:    it.MinLevel,
		MaxLevel:    it.MaxLevel,
		Version:     it.Version,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}, nil
}

func fromItemModel(m *itemModel) (*item.Item, error) {
	itemID, err := id.ParseItemID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse item id %q: %w", m.ID, err)
	}
	var entries []history.Entry
	if err := unmarshal(m.History, &entries); err != nil {
		return nil, fmt.Errorf("decode history of %s: %w", m.ItemID, err)
	}
	return &item.Item{
		Entity:      entity(m.CreatedAt, m.UpdatedAt),
		ID:          itemID,
		ItemID:      m.ItemID,
		Description: m.Description,
		Material:    m.Material,
		Comment:     m.Comment,
		History:     entries,
		MinLevel:    m.MinLevel,
		MaxLevel:    m.MaxLevel,
		Version:     m.Version,
	}, nil
}

// ==================== Receipt models ====================

type receiptModel struct {
	grove.BaseModel `grove:"table:stockwise_receipts"`

	ID           string          `grove:"id,pk"`
	PONumber     string          `grove:"po_number"`
	DateReceived *time.Time      `grove:"date_received"`
	Items        json.RawMessage `grove:"items,type:jsonb"`
	ItemRefs     json.RawMessage `grove:"item_refs,type:jsonb"`
	CreatedAt    time.Time       `grove:"created_at"`
	UpdatedAt    time.Time       `grove:"updated_at"`
}

func toReceiptModel(r *receipt.Receipt) (*receiptModel, error) {
	items, err := json.Marshal(nonNil(r.Items))
	if err != nil {
		return nil, fmt.Errorf("encode receipt %s: %w", r.ID, err)
	}
	refs, err := json.Marshal(nonNil(id.Strings(r.ItemRefs)))
	if err != nil {
		return nil, fmt.Errorf("encode receipt %s: %w", r.ID, err)
	}
	return &receiptModel{
		ID:           r.ID.String(),
		PONumber:     r.PONumber,
		DateReceived: datePtr(r.DateReceived),
		Items:        items,
		ItemRefs:     refs,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

func fromReceiptModel(m *receiptModel) (*receipt.Receipt, error) {
	receiptID, err := id.ParseReceiptID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse receipt id %q: %w", m.ID, err)
	}
	var lines []receipt.Line
	if err := unmarshal(m.Items, &lines); err != nil {
		return nil, fmt.Errorf("decode receipt %s: %w", m.ID, err)
	}
	refs, err := decodeRefs(m.ItemRefs)
	if err != nil {
		return nil, fmt.Errorf("decode receipt %s: %w", m.ID, err)
	}
	return &receipt.Receipt{
		Entity:       entity(m.CreatedAt, m.UpdatedAt),
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

	ID        string          `grove:"id,pk"`
	JobNumber string          `grove:"job_number"`
	DateUsed  *time.Time      `grove:"date_used"`
	Items     json.RawMessage `grove:"items,type:jsonb"`
	ItemRefs  json.RawMessage `grove:"item_refs,type:jsonb"`
	CreatedAt time.Time       `grove:"created_at"`
	UpdatedAt time.Time       `grove:"updated_at"`
}

func toUsageModel(u *usage.Usage) (*usageModel, error) {
	items, err := json.Marshal(nonNil(u.Items))
	if err != nil {
		return nil, fmt.Errorf("encode usage %s: %w", u.ID, err)
	}
	refs, err := json.Marshal(nonNil(id.Strings(u.ItemRefs)))
	if err != nil {
		return nil, fmt.Errorf("encode usage %s: %w", u.ID, err)
	}
	return &usageModel{
		ID:        u.ID.String(),
		JobNumber: u.JobNumber,
		DateUsed:  datePtr(u.DateUsed),
		Items:     items,
		ItemRefs:  refs,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}, nil
}

func fromUsageModel(m *usageModel) (*usage.Usage, error) {
	usageID, err := id.ParseUsageID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse usage id %q: %w", m.ID, err)
	}
	var lines []usage.Line
	if err := unmarshal(m.Items, &lines); err != nil {
		return nil, fmt.Errorf("decode usage %s: %w", m.ID, err)
	}
	refs, err := decodeRefs(m.ItemRefs)
	if err != nil {
		return nil, fmt.Errorf("decode usage %s: %w", m.ID, err)
	}
	return &usage.Usage{
		Entity:    entity(m.CreatedAt, m.UpdatedAt),
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

	ID        string          `grove:"id,pk"`
	JobNumber string          `grove:"job_number"`
	NeededBy  *time.Time      `grove:"needed_by"`
	Items     json.RawMessage `grove:"items,type:jsonb"`
	CreatedAt time.Time       `grove:"created_at"`
	UpdatedAt time.Time       `grove:"updated_at"`
}

func toRequirementModel(r *requirement.Requirement) (*requirementModel, error) {
	items, err := json.Marshal(nonNil(r.Items))
	if err != nil {
		return nil, fmt.Errorf("encode requirement %s: %w", r.ID, err)
	}
	return &requirementModel{
		ID:        r.ID.String(),
		JobNumber: r.JobNumber,
		NeededBy:  datePtr(r.NeededBy),
		Items:     items,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func fromRequirementModel(m *requirementModel) (*requirement.Requirement, error) {
	reqID, err := id.ParseRequirementID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse requirement id %q: %w", m.ID, err)
	}
	var lines []requirement.Line
	if err := unmarshal(m.Items, &lines); err != nil {
		return nil, fmt.Errorf("decode requirement %s: %w", m.ID, err)
	}
	return &requirement.Requirement{
		Entity:    entity(m.CreatedAt, m.UpdatedAt),
		ID:        reqID,
		JobNumber: m.JobNumber,
		NeededBy:  dateOf(m.NeededBy),
		Items:     lines,
	}, nil
}

// ==================== User models ====================

type userModel struct {
	grove.BaseModel `grove:"table:stockwise_users"`

	ID                 string    `grove:"id,pk"`
	UserID             string    `grove:"user_id"`
	Email              string    `grove:"email"`
	PasswordHash       string    `grove:"password_hash"`
	SecurityQuestion   string    `grove:"security_question"`
	SecurityAnswerHash string    `grove:"security_answer_hash"`
	CreatedAt          time.Time `grove:"created_at"`
	UpdatedAt          time.Time `grove:"updated_at"`
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
		Entity:             entity(m.CreatedAt, m.UpdatedAt),
		ID:                 userID,
		UserID:             m.UserID,
		Email:              m.Email,
		PasswordHash:       m.PasswordHash,
		SecurityQuestion:   m.SecurityQuestion,
		SecurityAnswerHash: m.SecurityAnswerHash,
	}, nil
}

// ==================== helpers ====================

func entity(createdAt, updatedAt time.Time) types.Entity {
	return types.Entity{CreatedAt: createdAt.UTC(), UpdatedAt: updatedAt.UTC()}
}

// datePtr maps the zero date to NULL.
func datePtr(d types.Date) *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time()
	return &t
}

func dateOf(t *time.Time) types.Date {
	if t == nil || t.IsZero() {
		return types.Date{}
	}
	return types.NewDate(*t)
}

func decodeRefs(raw json.RawMessage) ([]id.ItemID, error) {
	var ss []string
	if err := unmarshal(raw, &ss); err != nil {
		return nil, err
	}
	return id.ParseAll(ss)
}

func unmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
