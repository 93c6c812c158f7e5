// Package testdata contains types for schema extraction tests.
package testdata

import "github.com/blockberries/protoserial/pkg/protoserial"

// Status is the state of an account.
type Status int32

const (
	StatusUnknown Status = iota
	StatusActive
	StatusInReview
)

// Priority uses an unsigned base type.
type Priority uint8

const (
	PriorityLow    Priority = 0
	PriorityMedium Priority = 1
	PriorityHigh   Priority = 5
)

// Level has no constants and is encoded as its base type.
type Level int64

// User represents a user in the system.
type User struct {
	ID       int64             `proto:"1"`
	Name     string            `proto:"2"`
	Email    *string           `proto:"3"`
	Status   Status            `proto:"4"`
	Age      int32             `proto:"5,optional,signed"`
	Tags     []string          `proto:"6"`
	Scores   []uint32          `proto:"7,packed"`
	Labels   map[string]string `proto:"8"`
	Address  *Address          `proto:"9"`
	Contact  Contact
	Level    Level `proto:"12"`
	Extra    protoserial.ProtoMessage
	Internal string `proto:"-"`
	Handler  func()
}

// Address represents a physical address.
type Address struct {
	Street string
	City   string
}

// Admin is a user with admin privileges.
type Admin struct {
	User        `proto:"1"`
	Permissions []string `proto:"2"`
	Priority    Priority `proto:"3"`
}

// Contact is how a user is reached.
type Contact interface {
	isContact()
}

// ContactEmail is an email address.
// @protoNumber:10
type ContactEmail struct {
	Value string
}

func (ContactEmail) isContact() {}

// ContactPhone is a phone number.
type ContactPhone struct {
	Value uint64 `proto:",fixed"`
}

func (ContactPhone) isContact() {}

// ContactPost is a postal address.
type ContactPost struct {
	Street string
	City   string
}

func (ContactPost) isContact() {}

// privateType is an unexported type that should be excluded by default.
type privateType struct {
	Count int32
}
