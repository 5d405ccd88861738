package appointment

import (
	"slices"
	"time"
)

// Editable appointment fields, named as they appear on the wire.
const (
	FieldPatientConcerns = "patientConcerns"
	FieldDoctorsNotes    = "doctorsNotes"
	FieldPrescription    = "prescription"
	FieldTestsPrescribed = "testsPrescribed"
)

type transition struct {
	from AppointmentStatus
	to   AppointmentStatus
}

// transitions lists every legal status change and the roles that may make it.
// A USER entry is further limited to the patient's own appointment.
var transitions = map[transition][]Role{
	{StatusScheduled, StatusConfirmed}: {RoleDoctor, RoleClinic},
	{StatusScheduled, StatusCancelled}: {RoleDoctor, RoleClinic, RoleUser},
	{StatusConfirmed, StatusCancelled}: {RoleDoctor, RoleClinic, RoleUser},
	{StatusConfirmed, StatusCompleted}: {RoleDoctor, RoleClinic},
}

// fieldEditors lists who may write each field while the appointment is open.
var fieldEditors = map[string][]Role{
	FieldPatientConcerns: {RoleUser, RoleDoctor, RoleClinic},
	FieldDoctorsNotes:    {RoleDoctor, RoleClinic},
	FieldPrescription:    {RoleDoctor, RoleClinic},
	FieldTestsPrescribed: {RoleDoctor, RoleClinic},
}

// Change describes what Apply did to an appointment.
type Change struct {
	Fields []string
	From   AppointmentStatus
	To     AppointmentStatus
}

func (c Change) StatusChanged() bool { return c.From != c.To }

func (c Change) Empty() bool { return len(c.Fields) == 0 && !c.StatusChanged() }

// CheckTransition reports whether role may move an appointment from one
// status to another. It does not know about ownership.
func CheckTransition(from, to AppointmentStatus, role Role) error {
	if !to.Valid() {
		return ErrInvalidStatus
	}
	if from.Terminal() {
		return ErrAlreadyFinalized
	}
	if from == to {
		return ErrNoOpTransition
	}
	allowed, ok := transitions[transition{from, to}]
	if !ok {
		return ErrInvalidTransition
	}
	if !slices.Contains(allowed, role) {
		return unauthorized(role, "move appointment from %s to %s", from, to)
	}
	return nil
}

// CanEditField reports whether role may write field. Editing is only
// possible while the appointment is scheduled or confirmed.
func CanEditField(field string, role Role) bool {
	return slices.Contains(fieldEditors[field], role)
}

// Apply validates p against the lifecycle rules for actor and, only when the
// whole patch is allowed, writes it to a. Every field present in p is checked,
// even one that repeats the stored value; such fields are then not written and
// not reported in the Change.
func Apply(a *Appointment, actor Actor, p Patch, now time.Time) (Change, error) {
	change := Change{From: a.Status, To: a.Status}

	if !actor.Role.Valid() {
		return change, unauthorized(actor.Role, "modify appointments")
	}
	if actor.Role == RoleUser && a.PatientID != actor.ID {
		return change, unauthorized(actor.Role, "modify another patient's appointment")
	}

	present := p.fields()
	if len(present) == 0 && p.Status == nil {
		return change, nil
	}

	if a.Status.Terminal() {
		return change, ErrAlreadyFinalized
	}

	for _, f := range present {
		if !CanEditField(f, actor.Role) {
			return change, unauthorized(actor.Role, "edit %s", f)
		}
	}

	if p.Status != nil {
		if err := CheckTransition(a.Status, *p.Status, actor.Role); err != nil {
			return change, err
		}
		change.To = *p.Status
	}

	fields := changedFields(a, p)
	if len(fields) == 0 && !change.StatusChanged() {
		return change, nil
	}

	for _, f := range fields {
		switch f {
		case FieldPatientConcerns:
			a.PatientConcerns = *p.PatientConcerns
		case FieldDoctorsNotes:
			a.DoctorsNotes = *p.DoctorsNotes
		case FieldPrescription:
			a.Prescription = *p.Prescription
		case FieldTestsPrescribed:
			a.TestsPrescribed = slices.Clone(*p.TestsPrescribed)
		}
	}
	a.Status = change.To
	a.UpdatedAt = now
	change.Fields = fields

	return change, nil
}

// fields lists the editable fields p carries, whatever their values.
func (p Patch) fields() []string {
	var fields []string
	if p.PatientConcerns != nil {
		fields = append(fields, FieldPatientConcerns)
	}
	if p.DoctorsNotes != nil {
		fields = append(fields, FieldDoctorsNotes)
	}
	if p.Prescription != nil {
		fields = append(fields, FieldPrescription)
	}
	if p.TestsPrescribed != nil {
		fields = append(fields, FieldTestsPrescribed)
	}
	return fields
}

func changedFields(a *Appointment, p Patch) []string {
	var fields []string
	if p.PatientConcerns != nil && *p.PatientConcerns != a.PatientConcerns {
		fields = append(fields, FieldPatientConcerns)
	}
	if p.DoctorsNotes != nil && *p.DoctorsNotes != a.DoctorsNotes {
		fields = append(fields, FieldDoctorsNotes)
	}
	if p.Prescription != nil && *p.Prescription != a.Prescription {
		fields = append(fields, FieldPrescription)
	}
	if p.TestsPrescribed != nil && !slices.Equal(*p.TestsPrescribed, a.TestsPrescribed) {
		fields = append(fields, FieldTestsPrescribed)
	}
	return fields
}
