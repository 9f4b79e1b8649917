package school

import (
	"time"
)

const dateLayout = "2006-01-02"

type Teacher struct {
	ID             string    `bson:"id" json:"id"`
	FullName       string    `bson:"fullName" json:"fullName"`
	CI             string    `bson:"ci" json:"ci"`
	Email          string    `bson:"email" json:"email"`
	Phone          string    `bson:"phone" json:"phone"`
	Specialization string    `bson:"specialization" json:"specialization"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"` // UTC
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"` // UTC
}

type EmergencyContact struct {
	Name     string `bson:"name" json:"name" validate:"required,notblank,max=120"`
	Phone    string `bson:"phone" json:"phone" validate:"required,phone"`
	Relation string `bson:"relation" json:"relation" validate:"required,notblank,max=60"`
}

type MedicalInfo struct {
	Diagnosis   string `bson:"diagnosis" json:"diagnosis" validate:"max=2000"`
	Conditions  string `bson:"conditions" json:"conditions" validate:"max=2000"`
	Medications string `bson:"medications" json:"medications" validate:"max=2000"`
	Allergies   string `bson:"allergies" json:"allergies" validate:"max=2000"`
}

type PedagogicalInfo struct {
	GradeLevel         string `bson:"gradeLevel" json:"gradeLevel" validate:"max=120"`
	SpecializationArea string `bson:"specializationArea" json:"specializationArea" validate:"max=120"`
	SkillsAndInterests string `bson:"skillsAndInterests" json:"skillsAndInterests" validate:"max=2000"`
	SupportNeeds       string `bson:"supportNeeds" json:"supportNeeds" validate:"max=2000"`
}

// Representative is the parent or guardian of a Student.
// Email names the representative User; Student.RepresentativeUserID is the stable link.
type Representative struct {
	Name     string `bson:"name" json:"name" validate:"required,notblank,max=120"`
	CI       string `bson:"ci" json:"ci" validate:"required,ci"`
	Relation string `bson:"relation" json:"relation" validate:"required,notblank,max=60"`
	Phone    string `bson:"phone" json:"phone" validate:"required,phone"`
	Email    string `bson:"email" json:"email" validate:"required,email,max=254"`
	Address  string `bson:"address,omitempty" json:"address,omitempty" validate:"max=300"`
}

type Student struct {
	ID                   string           `bson:"id" json:"id"`
	Name                 string           `bson:"name" json:"name"`
	DOB                  time.Time        `bson:"dob" json:"dob"`
	Gender               string           `bson:"gender" json:"gender"`
	EmergencyContact     EmergencyContact `bson:"emergencyContact" json:"emergencyContact"`
	MedicalInfo          MedicalInfo      `bson:"medicalInfo" json:"medicalInfo"`
	PedagogicalInfo      PedagogicalInfo  `bson:"pedagogicalInfo" json:"pedagogicalInfo"`
	Representative       Representative   `bson:"representative" json:"representative"`
	RepresentativeUserID string           `bson:"representativeUserId,omitempty" json:"representativeUserId,omitempty"`
	CreatedAt            time.Time        `bson:"createdAt" json:"createdAt"` // UTC
	UpdatedAt            time.Time        `bson:"updatedAt" json:"updatedAt"` // UTC
}

// RepresentedBy reports whether the representative User (userID, email) is the student's representative.
// Documents created before the user id link existed are matched by email.
func (s *Student) RepresentedBy(userID, email string) bool {
	if s.RepresentativeUserID != "" {
		return s.RepresentativeUserID == userID
	}
	return email != "" && s.Representative.Email == email
}

type Area struct {
	ID          string    `bson:"id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description" json:"description"`
	TeacherIDs  []string  `bson:"teacherIds" json:"teacherIds"`
	StudentIDs  []string  `bson:"studentIds" json:"studentIds"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"` // UTC
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"` // UTC
}

type ScheduleEntry struct {
	ID        string `bson:"id" json:"id"`
	Day       string `bson:"day" json:"day" validate:"required,weekday"`
	StartTime string `bson:"startTime" json:"startTime" validate:"required,hhmm"`
	EndTime   string `bson:"endTime" json:"endTime" validate:"required,hhmm"`
	AreaID    string `bson:"areaId" json:"areaId" validate:"required"`
}

// overlaps reports whether e and other share the same day and some minutes.
// HH:MM strings compare like the times they hold.
func (e ScheduleEntry) overlaps(other ScheduleEntry) bool {
	return e.Day == other.Day && e.StartTime < other.EndTime && other.StartTime < e.EndTime
}

type Classroom struct {
	ID        string          `bson:"id" json:"id"`
	Name      string          `bson:"name" json:"name"`
	Building  string          `bson:"building" json:"building"`
	Schedule  []ScheduleEntry `bson:"schedule" json:"schedule"`
	CreatedAt time.Time       `bson:"createdAt" json:"createdAt"` // UTC
	UpdatedAt time.Time       `bson:"updatedAt" json:"updatedAt"` // UTC
}

// AreaIDs returns the ids of the areas scheduled in the classroom.
func (c *Classroom) AreaIDs() []string {
	ids := make([]string, 0, len(c.Schedule))
	for _, e := range c.Schedule {
		ids = append(ids, e.AreaID)
	}
	return ids
}

type ActivityLog struct {
	ID           string    `bson:"id" json:"id"`
	StudentID    string    `bson:"studentId" json:"studentId"`
	Date         time.Time `bson:"date" json:"date"`
	Teacher      string    `bson:"teacher" json:"teacher"` // author's name
	Achievements string    `bson:"achievements" json:"achievements"`
	Challenges   string    `bson:"challenges" json:"challenges"`
	Observations string    `bson:"observations" json:"observations"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"` // UTC
}

type ProgressReport struct {
	ID        string    `bson:"id" json:"id"`
	StudentID string    `bson:"studentId" json:"studentId"`
	Date      time.Time `bson:"date" json:"date"`
	Content   string    `bson:"content" json:"content"`
	Type      string    `bson:"type" json:"type"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"` // UTC
}

type Event struct {
	ID          string    `bson:"id" json:"id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	Date        time.Time `bson:"date" json:"date"`
	Location    string    `bson:"location" json:"location"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"` // UTC
}

// DayCount is the number of records dated on Day (YYYY-MM-DD).
type DayCount struct {
	Day   string `bson:"_id" json:"day"`
	Count int    `bson:"count" json:"count"`
}
