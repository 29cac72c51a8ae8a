package sqlite

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

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func formatDate(d types.Date) string {
	if d.IsZero() {
		return ""
	}
	return formatTime(d.Time())
}

func parseDate(s string) (types.Date, error) {
	if s == "" {
		return types.Date{}, nil
	}
	return types.ParseDate(s)
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fromJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// stamps decodes the created_at and updated_at columns.
func stamps(createdAt, updatedAt string) (types.Entity, error) {
	c, err := parseTime(createdAt)
	if err != nil {
		return types.Entity{}, err
	}
	u, err := parseTime(updatedAt)
	if err != nil {
		return types.Entity{}, err
	}
	return types.Entity{CreatedAt: c, UpdatedAt: u}, nil
}

// ==================== Item models ====================

type itemModel struct {
	grove.BaseModel `grove:"table:stockwise_items"`

	ID          string `grove:"id,pk"`
	ItemID      string `grove:"item_id"`
	Description string `grove:"description"`
	Material    string `grove:"material"`
	Comment     string `grove:"comment"`
	History     string `grove:"history"`
	MinLevel    int    `grove:"min_level"`
	MaxLevel    int    `grove:"max_level"`
	Version     int64  `grove:"version"`
	CreatedAt   string `grove:"created_at"`
	UpdatedAt   string `grove:"updated_at"`
}

func toItemModel(it *item.Item) (*itemModel, error) {
	hist, err := toJSON(nonNil(it.History))
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
		CreatedAt:   formatTime(it.CreatedAt),
		UpdatedAt:   formatTime(it.UpdatedAt),
	}, nil
}

func fromItemModel(m *itemModel) (*item.Item, error) {
	itemID, err := id.ParseItemID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse item id %q: %w", m.ID, err)
	}
	var entries []history.Entry
	if err := fromJSON(m.History, &entries); err != nil {
		return nil, fmt.Errorf("decode history of %s: %w", m.ItemID, err)
	}
	entity, err := stamps(m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode item %s: %w", m.ItemID, err)
	}
	return &item.Item{
		Entity:      entity,
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

	ID           string `grove:"id,pk"`
	PONumber     string `grove:"po_number"`
	DateReceived string `grove:"date_received"`
	Items        string `grove:"items"`
	ItemRefs     string `grove:"item_refs"`
	CreatedAt    string `grove:"created_at"`
	UpdatedAt    string `grove:"updated_at"`
}

func toReceiptModel(r *receipt.Receipt) (*receiptModel, error) {
	items, refs, err := encodeLines(r.Items, r.ItemRefs)
	if err != nil {
		return nil, fmt.Errorf("encode receipt %s: %w", r.ID, err)
	}
	return &receiptModel{
		ID:           r.ID.String(),
		PONumber:     r.PONumber,
		DateReceived: formatDate(r.DateReceived),
		Items:        items,
		ItemRefs:     refs,
		CreatedAt:    formatTime(r.CreatedAt),
		UpdatedAt:    formatTime(r.UpdatedAt),
	}, nil
}

func fromReceiptModel(m *receiptModel) (*receipt.Receipt, error) {
	receiptID, err := id.ParseReceiptID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse receipt id %q: %w", m.ID, err)
	}
	r := &receipt.Receipt{ID: receiptID, PONumber: m.PONumber}
	if err := decodeRecord(m.DateReceived, m.Items, m.ItemRefs, m.CreatedAt, m.UpdatedAt,
		&r.DateReceived, &r.Items, &r.ItemRefs, &r.Entity); err != nil {
		return nil, fmt.Errorf("decode receipt %s: %w", m.ID, err)
	}
	return r, nil
}

// ==================== Usage models ====================

type usageModel struct {
	grove.BaseModel `grove:"table:stockwise_usages"`

	ID        string `grove:"id,pk"`
	JobNumber string `grove:"job_number"`
	DateUsed  string `grove:"date_used"`
	Items     string `grove:"items"`
	ItemRefs  string `grove:"item_refs"`
	CreatedAt string `grove:"created_at"`
	UpdatedAt string `grove:"updated_at"`
}

func toUsageModel(u *usage.Usage) (*usageModel, error) {
	items, refs, err := encodeLines(u.Items, u.ItemRefs)
	if err != nil {
		return nil, fmt.Errorf("encode usage %s: %w", u.ID, err)
	}
	return &usageModel{
		ID:        u.ID.String(),
		JobNumber: u.JobNumber,
		DateUsed:  formatDate(u.DateUsed),
		Items:     items,
		ItemRefs:  refs,
		CreatedAt: formatTime(u.CreatedAt),
		UpdatedAt: formatTime(u.UpdatedAt),
	}, nil
}

func fromUsageModel(m *usageModel) (*usage.Usage, error) {
	usageID, err := id.ParseUsageID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse usage id %q: %w", m.ID, err)
	}
	u := &usage.Usage{ID: usageID, JobNumber: m.JobNumber}
	if err := decodeRecord(m.DateUsed, m.Items, m.ItemRefs, m.CreatedAt, m.UpdatedAt,
		&u.DateUsed, &u.Items, &u.ItemRefs, &u.Entity); err != nil {
		return nil, fmt.Errorf("decode usage %s: %w", m.ID, err)
	}
	return u, nil
}

// ==================== Requirement models ====================

type requirementModel struct {
	grove.BaseModel `grove:"table:stockwise_requirements"`

	ID        string `grove:"id,pk"`
	JobNumber string `grove:"job_number"`
	NeededBy  string `grove:"needed_by"`
	Items     string `grove:"items"`
	CreatedAt string `grove:"created_at"`
	UpdatedAt string `grove:"updated_at"`
}

func toRequirementModel(r *requirement.Requirement) (*requirementModel, error) {
	items, err := toJSON(nonNil(r.Items))
	if err != nil {
		return nil, fmt.Errorf("encode requirement %s: %w", r.ID, err)
	}
	return &requirementModel{
		ID:        r.ID.String(),
		JobNumber: r.JobNumber,
		NeededBy:  formatDate(r.NeededBy),
		Items:     items,
		CreatedAt: formatTime(r.CreatedAt),
		UpdatedAt: formatTime(r.UpdatedAt),
	}, nil
}

func fromRequirementModel(m *requirementModel) (*requirement.Requirement, error) {
	reqID, err := id.ParseRequirementID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse requirement id %q: %w", m.ID, err)
	}
	r := &requirement.Requirement{ID: reqID, JobNumber: m.JobNumber}
	if err := decodeRecord(m.NeededBy, m.Items, "", m.CreatedAt, m.UpdatedAt,
		&r.NeededBy, &r.Items, nil, &r.Entity); err != nil {
		return nil, fmt.Errorf("decode requirement %s: %w", m.ID, err)
	}
	return r, nil
}

// decodeRecord fills the columns shared by receipts, usages and requirements.
// refs may be nil for tables without item references.
func decodeRecord(date, itemsJSON, refsJSON, createdAt, updatedAt string, d *types.Date, lines any, refs *[]id.ItemID, e *types.Entity) error {
	var err error
	if *d, err = parseDate(date); err != nil {
		return err
	}
	if err := fromJSON(itemsJSON, lines); err != nil {
		return err
	}
	if refs != nil {
		if err := fromJSON(refsJSON, refs); err != nil {
			return err
		}
	}
	*e, err = stamps(createdAt, updatedAt)
	return err
}

func encodeLines[L any](lines []L, refs []id.ItemID) (string, string, error) {
	items, err := toJSON(nonNil(lines))
	if err != nil {
		return "", "", err
	}
	encodedRefs, err := toJSON(nonNil(refs))
	if err != nil {
		return "", "", err
	}
	return items, encodedRefs, nil
}

// ==================== User models ====================

type userModel struct {
	grove.BaseModel `grove:"table:stockwise_users"`

	ID                 string `grove:"id,pk"`
	UserID             string `grove:"user_id"`
	Email              string `grove:"email"`
	PasswordHash       string `grove:"password_hash"`
	SecurityQuestion   string `grove:"security_question"`
	SecurityAnswerHash string `grove:"security_answer_hash"`
	CreatedAt          string `grove:"created_at"`
	UpdatedAt          string `grove:"updated_at"`
}

func toUserModel(u *user.User) *userModel {
	return &userModel{
		ID:                 u.ID.String(),
		UserID:             u.UserID,
		Email:              u.Email,
		PasswordHash:       u.PasswordHash,
		SecurityQuestion:   u.SecurityQuestion,
		SecurityAnswerHash: u.SecurityAnswerHash,
		CreatedAt:          formatTime(u.CreatedAt),
		UpdatedAt:          formatTime(u.UpdatedAt),
	}
}

func fromUserModel(m *userModel) (*user.User, error) {
	userID, err := id.ParseUserID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", m.ID, err)
	}
	entity, err := stamps(m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode user %s: %w", m.UserID, err)
	}
	return &user.User{
		Entity:             entity,
		ID:                 userID,
		UserID:             m.UserID,
		Email:              m.Email,
		PasswordHash:       m.PasswordHash,
		SecurityQuestion:   m.SecurityQuestion,
		SecurityAnswerHash: m.SecurityAnswerHash,
	}, nil
}
