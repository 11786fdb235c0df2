package models

import "time"

// Student holds the identity fields printed on every document.
type Student struct {
	ID             int64      `db:"id" json:"id"`
	Identification string     `db:"identification_number" json:"identification_number"`
	Names          string     `db:"names" json:"names"`
	FatherLastname string     `db:"father_lastname" json:"father_lastname"`
	MotherLastname string     `db:"mother_lastname" json:"mother_lastname"`
	BirthDate      *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	GenderID       *int64     `db:"gender_id" json:"gender_id,omitempty"`
	NationalityID  *int64     `db:"nationality_id" json:"nationality_id,omitempty"`
	CommuneID      *int64     `db:"commune_id" json:"commune_id,omitempty"`
	Address        string     `db:"address" json:"address"`
	Phone          string     `db:"phone" json:"phone"`
	SchoolID       *int64     `db:"school_id" json:"school_id,omitempty"`
	CourseID       *int64     `db:"course_id" json:"course_id,omitempty"`
}

// Fields exposes the student as a record for placeholder sources.
func (s Student) Fields() Record {
	out := Record{
		"id":                    s.ID,
		"identification_number": s.Identification,
		"names":                 s.Names,
		"father_lastname":       s.FatherLastname,
		"mother_lastname":       s.MotherLastname,
		"address":               s.Address,
		"phone":                 s.Phone,
		"birth_date":            nil,
		"gender_id":             nil,
		"nationality_id":        nil,
		"commune_id":            nil,
		"school_id":             nil,
		"course_id":             nil,
	}
	if s.BirthDate != nil {
		out["birth_date"] = *s.BirthDate
	}
	setOptional(out, "gender_id", s.GenderID)
	setOptional(out, "nationality_id", s.NationalityID)
	setOptional(out, "commune_id", s.CommuneID)
	setOptional(out, "school_id", s.SchoolID)
	setOptional(out, "course_id", s.CourseID)
	return out
}

func setOptional(r Record, key string, v *int64) {
	if v != nil {
		r[key] = *v
	}
}
