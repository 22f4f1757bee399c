// Code generated by ent, DO NOT EDIT.

package ent

import (
	"time"

	"github.com/adaeze-umeh/traffic-analyzer/db/ent/schema"
	"github.com/adaeze-umeh/traffic-analyzer/gen/ent/job"
	"github.com/google/uuid"
)

// The init function reads all schema descriptors with runtime code
// (default values, validators, hooks and policies) and stitches it
// to their package variables.
func init() {
	jobFields := schema.Job{}.Fields()
	_ = jobFields
	// jobDescOwner is the schema descriptor for owner field.
	jobDescOwner := jobFields[1].Descriptor()
	// job.OwnerValidator is a validator for the "owner" field. It is called by the builders before save.
	job.OwnerValidator = jobDescOwner.Validators[0].(func(string) error)
	// jobDescSourceName is the schema descriptor for source_name field.
	jobDescSourceName := jobFields[2].Descriptor()
	// job.SourceNameValidator is a validator for the "source_name" field. It is called by the builders before save.
	job.SourceNameValidator = jobDescSourceName.Validators[0].(func(string) error)
	// jobDescStatus is the schema descriptor for status field.
	jobDescStatus := jobFields[3].Descriptor()
	// job.DefaultStatus holds the default value on creation for the status field.
	job.DefaultStatus = jobDescStatus.Default.(string)
	// job.StatusValidator is a validator for the "status" field. It is called by the builders before save.
	job.StatusValidator = jobDescStatus.Validators[0].(func(string) error)
	// jobDescCreatedAt is the schema descriptor for created_at field.
	jobDescCreatedAt := jobFields[7].Descriptor()
	// job.DefaultCreatedAt holds the default value on creation for the created_at field.
	job.DefaultCreatedAt = jobDescCreatedAt.Default.(func() time.Time)
	// jobDescID is the schema descriptor for id field.
	jobDescID := jobFields[0].Descriptor()
	// job.DefaultID holds the default value on creation for the id field.
	job.DefaultID = jobDescID.Default.(func() uuid.UUID)
}
