package rest

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

// params collects query and path parameter errors so that a request reports
// every invalid parameter at once.
type params struct {
	c    *gin.Context
	errs []domain.FieldError
}

func newParams(c *gin.Context) *params { return &params{c: c} }

func (p *params) fail(field, msg string) {
	p.errs = append(p.errs, domain.FieldError{Field: field, Message: msg})
}

func (p *params) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return domain.NewValidationErrors(p.errs)
}

func (p *params) uuid(name string) *uuid.UUID {
	v := strings.TrimSpace(p.c.Query(name))
	if v == "" {
		return nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		p.fail(name, "must be a UUID")
		return nil
	}
	return &id
}

func (p *params) int64(name string) *int64 {
	v := strings.TrimSpace(p.c.Query(name))
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		p.fail(name, "must be a positive integer")
		return nil
	}
	return &n
}

func (p *params) int(name string, def int) int {
	v := strings.TrimSpace(p.c.Query(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(name, "must be an integer")
		return def
	}
	return n
}

func (p *params) bool(name string) *bool {
	v := strings.TrimSpace(p.c.Query(name))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(name, "must be true or false")
		return nil
	}
	return &b
}

func (p *params) date(name string) *time.Time {
	v := strings.TrimSpace(p.c.Query(name))
	if v == "" {
		return nil
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		p.fail(name, "must be a date in YYYY-MM-DD format")
		return nil
	}
	return &d
}

func (p *params) pathUUID(name string) uuid.UUID {
	id, err := uuid.Parse(p.c.Param(name))
	if err != nil {
		p.fail(name, "must be a UUID")
		return uuid.Nil
	}
	return id
}

// serviceLogFilter reads the service-log filter from the query string:
// user_id, client_id, activity_id, is_draft, date_from, date_to.
func (p *params) serviceLogFilter() domain.ServiceLogFilter {
	return domain.ServiceLogFilter{
		UserID:     p.uuid("user_id"),
		ClientID:   p.int64("client_id"),
		ActivityID: p.int64("activity_id"),
		IsDraft:    p.bool("is_draft"),
		DateFrom:   p.date("date_from"),
		DateTo:     p.date("date_to"),
	}
}
