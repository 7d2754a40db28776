// Package seed loads a small, self-consistent sample dataset into the
// platform database and blob store: a school district, two terms, courses,
// classes, users, enrollments, and one assessment test with answerable items.
package seed

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/timeback/rosterdash/internal/platform/storage"
	"github.com/timeback/rosterdash/internal/roster"
)

// Run is idempotent per sourcedId/email: existing rows are replaced.
func Run(ctx context.Context, dbh *sql.DB, blobs storage.BlobStore, password string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	districtID := uuid.NewString()
	schoolID := uuid.NewString()
	termID := uuid.NewString()
	yearID := uuid.NewString()
	mathCourseID := uuid.NewString()
	sciCourseID := uuid.NewString()
	mathClassID := uuid.NewString()
	sciClassID := uuid.NewString()
	teacherID := uuid.NewString()
	studentOneID := uuid.NewString()
	studentTwoID := uuid.NewString()

	orgRef := func(id string) roster.GUIDRef {
		return roster.GUIDRef{Href: "/orgs/" + id, SourcedID: id, Type: "org"}
	}

	orgs := []roster.Org{
		{SourcedID: districtID, Status: "active", DateLastModified: now, Name: "Lakeview District", Type: "district", Identifier: "LVD"},
		{SourcedID: schoolID, Status: "active", DateLastModified: now, Name: "Lakeview High School", Type: "school", Identifier: "LVHS"},
	}
	sessions := []roster.AcademicSession{
		{SourcedID: yearID, Status: "active", DateLastModified: now, Title: "2025-2026 School Year",
			StartDate: "2025-08-18", EndDate: "2026-06-05", Type: "schoolYear", SchoolYear: "2026"},
		{SourcedID: termID, Status: "active", DateLastModified: now, Title: "Fall Term 2025",
			StartDate: "2025-08-18", EndDate: "2025-12-19", Type: "term", SchoolYear: "2026"},
	}
	courses := []roster.Course{
		{SourcedID: mathCourseID, Status: "active", DateLastModified: now, Title: "Algebra I",
			CourseCode: "MATH-101", Grades: []string{"09"}, Subjects: []string{"math"}, Org: orgRef(schoolID)},
		{SourcedID: sciCourseID, Status: "active", DateLastModified: now, Title: "Earth Science",
			CourseCode: "SCI-110", Grades: []string{"09"}, Subjects: []string{"science"}, Org: orgRef(schoolID)},
	}
	users := []roster.User{
		{SourcedID: teacherID, Status: "active", DateLastModified: now, Username: "adiaz",
			EnabledUser: true, GivenName: "Ana", FamilyName: "Diaz", Role: "teacher",
			Identifier: "T-1001", Email: "ana.diaz@lakeview.example.edu", Orgs: []roster.GUIDRef{orgRef(schoolID)}},
		{SourcedID: studentOneID, Status: "active", DateLastModified: now, Username: "bchen",
			EnabledUser: true, GivenName: "Bo", FamilyName: "Chen", Role: "student",
			Identifier: "S-2001", Email: "bo.chen@lakeview.example.edu", Grades: []string{"09"},
			Orgs: []roster.GUIDRef{orgRef(schoolID)}},
		{SourcedID: studentTwoID, Status: "active", DateLastModified: now, Username: "mokafor",
			EnabledUser: true, GivenName: "Mara", FamilyName: "Okafor", Role: "student",
			Identifier: "S-2002", Email: "mara.okafor@lakeview.example.edu", Grades: []string{"09"},
			Orgs: []roster.GUIDRef{orgRef(schoolID)}},
	}
	classes := []roster.Class{
		{SourcedID: mathClassID, Status: "active", DateLastModified: now, Title: "Algebra I - Period 2",
			ClassCode: "MATH-101-02", ClassType: "scheduled", Grades: []string{"09"}, Subjects: []string{"math"},
			Course: roster.GUIDRef{Href: "/courses/" + mathCourseID, SourcedID: mathCourseID, Type: "course"},
			School: orgRef(schoolID),
			Terms:  []roster.GUIDRef{{Href: "/academicSessions/" + termID, SourcedID: termID, Type: "academicSession"}}},
		{SourcedID: sciClassID, Status: "active", DateLastModified: now, Title: "Earth Science - Period 4",
			ClassCode: "SCI-110-04", ClassType: "scheduled", Grades: []string{"09"}, Subjects: []string{"science"},
			Course: roster.GUIDRef{Href: "/courses/" + sciCourseID, SourcedID: sciCourseID, Type: "course"},
			School: orgRef(schoolID),
			Terms:  []roster.GUIDRef{{Href: "/academicSessions/" + termID, SourcedID: termID, Type: "academicSession"}}},
	}
	enrollment := func(userID, classID, role string, primary bool) roster.Enrollment {
		return roster.Enrollment{
			SourcedID: uuid.NewString(), Status: "active", DateLastModified: now, Role: role, Primary: primary,
			BeginDate: "2025-08-18", EndDate: "2025-12-19",
			User:   roster.GUIDRef{Href: "/users/" + userID, SourcedID: userID, Type: "user"},
			Class:  roster.GUIDRef{Href: "/classes/" + classID, SourcedID: classID, Type: "class"},
			School: orgRef(schoolID),
		}
	}
	enrollments := []roster.Enrollment{
		enrollment(teacherID, mathClassID, "teacher", true),
		enrollment(teacherID, sciClassID, "teacher", true),
		enrollment(studentOneID, mathClassID, "student", true),
		enrollment(studentOneID, sciClassID, "student", false),
		enrollment(studentTwoID, mathClassID, "student", true),
	}

	if err := putRoster(ctx, dbh, "orgs", orgs, func(o roster.Org) (string, string) { return o.SourcedID, "" }); err != nil {
		return err
	}
	if err := putRoster(ctx, dbh, "academicSessions", sessions, func(s roster.AcademicSession) (string, string) { return s.SourcedID, "" }); err != nil {
		return err
	}
	if err := putRoster(ctx, dbh, "courses", courses, func(c roster.Course) (string, string) { return c.SourcedID, "" }); err != nil {
		return err
	}
	if err := putRoster(ctx, dbh, "users", users, func(u roster.User) (string, string) { return u.SourcedID, u.Role }); err != nil {
		return err
	}
	if err := putRoster(ctx, dbh, "classes", classes, func(c roster.Class) (string, string) { return c.SourcedID, "" }); err != nil {
		return err
	}
	if err := putRoster(ctx, dbh, "enrollments", enrollments, func(e roster.Enrollment) (string, string) { return e.SourcedID, e.Role }); err != nil {
		return err
	}

	if err := seedAccounts(ctx, dbh, password, users); err != nil {
		return err
	}
	return seedAssessment(ctx, dbh, blobs)
}

func putRoster[T any](ctx context.Context, dbh *sql.DB, collection string, records []T, key func(T) (id, role string)) error {
	for _, rec := range records {
		id, role := key(rec)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := dbh.ExecContext(ctx, `DELETE FROM roster_records WHERE collection=$1 AND sourced_id=$2`, collection, id); err != nil {
			return err
		}
		if _, err := dbh.ExecContext(ctx,
			`INSERT INTO roster_records (collection, sourced_id, role, data) VALUES ($1, $2, $3, $4)`,
			collection, id, role, string(data)); err != nil {
			return fmt.Errorf("seed %s %s: %w", collection, id, err)
		}
	}
	return nil
}

func seedAccounts(ctx context.Context, dbh *sql.DB, password string, users []roster.User) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	type acct struct{ email, name, role string }
	accts := []acct{{"admin@lakeview.example.edu", "District Admin", "administrator"}}
	for _, u := range users {
		accts = append(accts, acct{u.Email, u.GivenName + " " + u.FamilyName, u.Role})
	}
	for _, a := range accts {
		if _, err := dbh.ExecContext(ctx, `DELETE FROM accounts WHERE email=$1`, a.email); err != nil {
			return err
		}
		if _, err := dbh.ExecContext(ctx,
			`INSERT INTO accounts (email, password_hash, name, role, confirmed, confirm_code, created_at)
			 VALUES ($1, $2, $3, $4, $5, '', $6)`,
			a.email, string(hash), a.name, a.role, true, time.Now().Unix()); err != nil {
			return fmt.Errorf("seed account %s: %w", a.email, err)
		}
	}
	return nil
}

const choiceItemXML = `<?xml version="1.0" encoding="UTF-8"?>
<assessmentItem xmlns="http://www.imsglobal.org/xsd/imsqti_v2p2"
                xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
                identifier="item-rock-cycle" title="The Rock Cycle">
  <itemBody>
    <div>
      <p>Which rock type forms when magma cools and solidifies?</p>
      <choiceInteraction responseIdentifier="RESPONSE" shuffle="false" maxChoices="1">
        <simpleChoice identifier="choice_igneous">Igneous</simpleChoice>
        <simpleChoice identifier="choice_sedimentary">Sedimentary</simpleChoice>
        <simpleChoice identifier="choice_metamorphic">Metamorphic</simpleChoice>
        <simpleChoice identifier="choice_mineral">Mineral</simpleChoice>
      </choiceInteraction>
    </div>
  </itemBody>
</assessmentItem>`

const textEntryItemXML = `<?xml version="1.0" encoding="UTF-8"?>
<assessmentItem xmlns="http://www.imsglobal.org/xsd/imsqti_v2p2"
                xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
                identifier="item-water-cycle" title="The Water Cycle">
  <itemBody>
    <div>
      <p>Name the process by which water vapor becomes liquid water.</p>
      <textEntryInteraction responseIdentifier="RESPONSE" expectedLength="20"/>
    </div>
  </itemBody>
</assessmentItem>`

func seedAssessment(ctx context.Context, dbh *sql.DB, blobs storage.BlobStore) error {
	type seedItem struct {
		id, identifier, title, interactionType, xml string
		sequence                                    int
	}
	items := []seedItem{
		{"item-1", "item-rock-cycle", "The Rock Cycle", "choice", choiceItemXML, 1},
		{"item-2", "item-water-cycle", "The Water Cycle", "textEntry", textEntryItemXML, 2},
		// No XML on purpose: exercises the ContentUnavailable path end to end.
		{"item-3", "item-pending", "Pending Question", "choice", "", 3},
	}

	type refJSON struct {
		ID              string `json:"id"`
		Identifier      string `json:"identifier"`
		Title           string `json:"title"`
		InteractionType string `json:"interactionType"`
		Sequence        int    `json:"sequence"`
	}
	refs := make([]refJSON, 0, len(items))

	for _, it := range items {
		xmlKey, xmlHash := "", ""
		if it.xml != "" {
			xmlKey = "items/" + it.id + ".xml"
			if _, err := blobs.Put(xmlKey, strings.NewReader(it.xml)); err != nil {
				return fmt.Errorf("seed item xml %s: %w", it.id, err)
			}
			sum := sha256.Sum256([]byte(it.xml))
			xmlHash = hex.EncodeToString(sum[:])
		}
		if _, err := dbh.ExecContext(ctx, `DELETE FROM assessment_items WHERE id=$1`, it.id); err != nil {
			return err
		}
		if _, err := dbh.ExecContext(ctx,
			`INSERT INTO assessment_items (id, identifier, title, xml_key, xml_hash) VALUES ($1, $2, $3, $4, $5)`,
			it.id, it.identifier, it.title, xmlKey, xmlHash); err != nil {
			return err
		}
		refs = append(refs, refJSON{it.id, it.identifier, it.title, it.interactionType, it.sequence})
	}

	parts := []map[string]any{{
		"id":         "part-1",
		"identifier": "PART-1",
		"sections": []map[string]any{{
			"id":         "section-1",
			"identifier": "SECTION-1",
			"title":      "Science Basics",
			"items":      refs,
		}},
	}}
	partsJSON, err := json.Marshal(parts)
	if err != nil {
		return err
	}
	if _, err := dbh.ExecContext(ctx, `DELETE FROM assessment_tests WHERE id=$1`, "T1"); err != nil {
		return err
	}
	_, err = dbh.ExecContext(ctx,
		`INSERT INTO assessment_tests (id, title, parts_json) VALUES ($1, $2, $3)`,
		"T1", "Science Basics Check", string(partsJSON))
	return err
}
