package roster

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/timeback/rosterdash/internal/auth/gateway"
)

// Client fetches roster collections through the auth gateway. Every response
// body is the OneRoster envelope {collectionName: [...]}.
type Client struct {
	base string
	gw   *gateway.Gateway
}

func New(base string, gw *gateway.Gateway) *Client {
	return &Client{base: strings.TrimSuffix(base, "/"), gw: gw}
}

func (c *Client) Orgs(ctx context.Context) ([]Org, error) {
	var out struct {
		Orgs []Org `json:"orgs"`
	}
	if err := c.gw.GetJSON(ctx, c.base+"/orgs", &out); err != nil {
		return nil, err
	}
	return out.Orgs, nil
}

func (c *Client) AcademicSessions(ctx context.Context) ([]AcademicSession, error) {
	var out struct {
		AcademicSessions []AcademicSession `json:"academicSessions"`
	}
	if err := c.gw.GetJSON(ctx, c.base+"/academicSessions", &out); err != nil {
		return nil, err
	}
	return out.AcademicSessions, nil
}

func (c *Client) Courses(ctx context.Context) ([]Course, error) {
	var out struct {
		Courses []Course `json:"courses"`
	}
	if err := c.gw.GetJSON(ctx, c.base+"/courses", &out); err != nil {
		return nil, err
	}
	return out.Courses, nil
}

// Users lists users, optionally narrowed with the OneRoster filter syntax
// role='x'. An empty role lists everyone.
func (c *Client) Users(ctx context.Context, role string) ([]User, error) {
	u := c.base + "/users"
	if role != "" {
		q := url.Values{}
		q.Set("filter", fmt.Sprintf("role='%s'", role))
		u += "?" + q.Encode()
	}
	var out struct {
		Users []User `json:"users"`
	}
	if err := c.gw.GetJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) Classes(ctx context.Context) ([]Class, error) {
	var out struct {
		Classes []Class `json:"classes"`
	}
	if err := c.gw.GetJSON(ctx, c.base+"/classes", &out); err != nil {
		return nil, err
	}
	return out.Classes, nil
}

func (c *Client) Enrollments(ctx context.Context) ([]Enrollment, error) {
	var out struct {
		Enrollments []Enrollment `json:"enrollments"`
	}
	if err := c.gw.GetJSON(ctx, c.base+"/enrollments", &out); err != nil {
		return nil, err
	}
	return out.Enrollments, nil
}

func (c *Client) Org(ctx context.Context, id string) (Org, error) {
	var out struct {
		Org Org `json:"org"`
	}
	err := c.gw.GetJSON(ctx, c.base+"/orgs/"+url.PathEscape(id), &out)
	return out.Org, err
}

func (c *Client) User(ctx context.Context, id string) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := c.gw.GetJSON(ctx, c.base+"/users/"+url.PathEscape(id), &out)
	return out.User, err
}

func (c *Client) Course(ctx context.Context, id string) (Course, error) {
	var out struct {
		Course Course `json:"course"`
	}
	err := c.gw.GetJSON(ctx, c.base+"/courses/"+url.PathEscape(id), &out)
	return out.Course, err
}

func (c *Client) Class(ctx context.Context, id string) (Class, error) {
	var out struct {
		Class Class `json:"class"`
	}
	err := c.gw.GetJSON(ctx, c.base+"/classes/"+url.PathEscape(id), &out)
	return out.Class, err
}

// Relational lookups.

func (c *Client) ClassesForSchool(ctx context.Context, schoolID string) ([]Class, error) {
	var out struct {
		Classes []Class `json:"classes"`
	}
	err := c.gw.GetJSON(ctx, c.base+"/schools/"+url.PathEscape(schoolID)+"/classes", &out)
	return out.Classes, err
}

func (c *Client) StudentsForClass(ctx context.Context, classID string) ([]User, error) {
	var out struct {
		Users []User `json:"users"`
	}
	err := c.gw.GetJSON(ctx, c.base+"/classes/"+url.PathEscape(classID)+"/students", &out)
	return out.Users, err
}

func (c *Client) TeachersForClass(ctx context.Context, classID string) ([]User, error) {
	var out struct {
		Users []User `json:"users"`
	}
	err := c.gw.GetJSON(ctx, c.base+"/classes/"+url.PathEscape(classID)+"/teachers", &out)
	return out.Users, err
}

func (c *Client) ClassesForUser(ctx context.Context, userID string) ([]Class, error) {
	var out struct {
		Classes []Class `json:"classes"`
	}
	err := c.gw.GetJSON(ctx, c.base+"/users/"+url.PathEscape(userID)+"/classes", &out)
	return out.Classes, err
}
