package models

import (
	"sort"
	"time"
)

// LinkableType names the entity kind on the far side of a polymorphic
// link. The set is closed; every value maps to exactly one model.
type LinkableType string

const (
	LinkAsset            LinkableType = "Asset"
	LinkPeripheral       LinkableType = "Peripheral"
	LinkLicense          LinkableType = "License"
	LinkSoftware         LinkableType = "Software"
	LinkSubscription     LinkableType = "Subscription"
	LinkSupplier         LinkableType = "Supplier"
	LinkContact          LinkableType = "Contact"
	LinkPurchase         LinkableType = "Purchase"
	LinkBudget           LinkableType = "Budget"
	LinkPolicy           LinkableType = "Policy"
	LinkPolicyVersion    LinkableType = "PolicyVersion"
	LinkRisk             LinkableType = "Risk"
	LinkSecurityIncident LinkableType = "SecurityIncident"
	LinkBCDRPlan         LinkableType = "BCDRPlan"
	LinkBCDRTestLog      LinkableType = "BCDRTestLog"
	LinkCourse           LinkableType = "Course"
	LinkCourseCompletion LinkableType = "CourseCompletion"
	LinkDocumentation    LinkableType = "Documentation"
	LinkDisposalRecord   LinkableType = "DisposalRecord"
	LinkOpportunity      LinkableType = "Opportunity"
)

var linkableModels = map[LinkableType]func() any{
	LinkAsset:            func() any { return &Asset{} },
	LinkPeripheral:       func() any { return &Peripheral{} },
	LinkLicense:          func() any { return &License{} },
	LinkSoftware:         func() any { return &Software{} },
	LinkSubscription:     func() any { return &Subscription{} },
	LinkSupplier:         func() any { return &Supplier{} },
	LinkContact:          func() any { return &Contact{} },
	LinkPurchase:         func() any { return &Purchase{} },
	LinkBudget:           func() any { return &Budget{} },
	LinkPolicy:           func() any { return &Policy{} },
	LinkPolicyVersion:    func() any { return &PolicyVersion{} },
	LinkRisk:             func() any { return &Risk{} },
	LinkSecurityIncident: func() any { return &SecurityIncident{} },
	LinkBCDRPlan:         func() any { return &BCDRPlan{} },
	LinkBCDRTestLog:      func() any { return &BCDRTestLog{} },
	LinkCourse:           func() any { return &Course{} },
	LinkCourseCompletion: func() any { return &CourseCompletion{} },
	LinkDocumentation:    func() any { return &Documentation{} },
	LinkDisposalRecord:   func() any { return &DisposalRecord{} },
	LinkOpportunity:      func() any { return &Opportunity{} },
}

// Valid reports whether t is part of the enumeration.
func (t LinkableType) Valid() bool {
	_, ok := linkableModels[t]
	return ok
}

// NewModel returns a fresh pointer to the model t refers to, for use as a
// gorm query target.
func (t LinkableType) NewModel() (any, bool) {
	f, ok := linkableModels[t]
	if !ok {
		return nil, false
	}
	return f(), true
}

// LinkableTypes lists the enumeration in name order.
func LinkableTypes() []LinkableType {
	out := make([]LinkableType, 0, len(linkableModels))
	for t := range linkableModels {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Attachment is a stored file bound to any linkable entity.
type Attachment struct {
	ID             uint         `gorm:"column:id;primaryKey" json:"id"`
	Filename       string       `gorm:"column:filename;size:255;not null" json:"filename"`
	SecureFilename string       `gorm:"column:secure_filename;size:255;uniqueIndex;not null" json:"-"`
	ContentType    string       `gorm:"column:content_type;size:100" json:"content_type"`
	Size           int64        `gorm:"column:size" json:"size"`
	LinkableType   LinkableType `gorm:"column:linkable_type;size:50;not null;index:idx_attachment_target,priority:1" json:"linkable_type"`
	LinkableID     uint         `gorm:"column:linkable_id;not null;index:idx_attachment_target,priority:2" json:"linkable_id"`
	UploadedBy     *uint        `gorm:"column:uploaded_by" json:"uploaded_by"`
	CreatedAt      time.Time    `gorm:"column:created_at" json:"created_at"`
}

func (Attachment) TableName() string {
	return "attachments"
}
