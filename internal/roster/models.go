// Package roster is a read-only OneRoster v1.2 rostering client. Every record
// is a sourced entity: identified by a stable sourcedId, linked to related
// records through GUID refs.
package roster

// GUIDRef points at another sourced entity.
type GUIDRef struct {
	Href      string `json:"href"`
	SourcedID string `json:"sourcedId"`
	Type      string `json:"type"`
}

type Org struct {
	SourcedID        string `json:"sourcedId"`
	Status           string `json:"status,omitempty"`
	DateLastModified string `json:"dateLastModified,omitempty"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Identifier       string `json:"identifier,omitempty"`
}

type AcademicSession struct {
	SourcedID        string `json:"sourcedId"`
	Status           string `json:"status"`
	DateLastModified string `json:"dateLastModified"`
	Title            string `json:"title"`
	StartDate        string `json:"startDate"`
	EndDate          string `json:"endDate"`
	Type             string `json:"type"`
	SchoolYear       string `json:"schoolYear"`
}

type Course struct {
	SourcedID        string   `json:"sourcedId"`
	Status           string   `json:"status"`
	DateLastModified string   `json:"dateLastModified"`
	Title            string   `json:"title"`
	CourseCode       string   `json:"courseCode"`
	Grades           []string `json:"grades,omitempty"`
	Subjects         []string `json:"subjects,omitempty"`
	Org              GUIDRef  `json:"org"`
}

type User struct {
	SourcedID        string    `json:"sourcedId"`
	Status           string    `json:"status"`
	DateLastModified string    `json:"dateLastModified"`
	Username         string    `json:"username"`
	EnabledUser      bool      `json:"enabledUser"`
	GivenName        string    `json:"givenName"`
	FamilyName       string    `json:"familyName"`
	MiddleName       string    `json:"middleName,omitempty"`
	Role             string    `json:"role"`
	Identifier       string    `json:"identifier"`
	Email            string    `json:"email"`
	Grades           []string  `json:"grades,omitempty"`
	Orgs             []GUIDRef `json:"orgs"`
}

type Class struct {
	SourcedID        string    `json:"sourcedId"`
	Status           string    `json:"status"`
	DateLastModified string    `json:"dateLastModified"`
	Title            string    `json:"title"`
	ClassCode        string    `json:"classCode"`
	ClassType        string    `json:"classType"`
	Grades           []string  `json:"grades,omitempty"`
	Subjects         []string  `json:"subjects,omitempty"`
	Course           GUIDRef   `json:"course"`
	School           GUIDRef   `json:"school"`
	Terms            []GUIDRef `json:"terms"`
}

type Enrollment struct {
	SourcedID        string  `json:"sourcedId"`
	Status           string  `json:"status"`
	DateLastModified string  `json:"dateLastModified"`
	Role             string  `json:"role"`
	Primary          bool    `json:"primary,omitempty"`
	BeginDate        string  `json:"beginDate"`
	EndDate          string  `json:"endDate"`
	User             GUIDRef `json:"user"`
	Class            GUIDRef `json:"class"`
	School           GUIDRef `json:"school"`
}
