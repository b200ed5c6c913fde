package memory

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

// registerSchema повторяет значения по умолчанию и ограничения миграций PostgreSQL.
func registerSchema(s *Store) {
	s.defaults[domain.TableAdmins] = func(now time.Time) domain.Fields {
		return domain.Fields{"role": domain.RoleAdmin, "created_at": now}
	}
	s.unique[domain.TableAdmins] = [][]string{{"username"}}

	s.defaults[domain.TableAnimals] = func(now time.Time) domain.Fields {
		return domain.Fields{"description": "", "created_at": now, "updated_at": now}
	}
	s.checks[domain.TableAnimals] = func(row domain.Fields) error {
		if asInt64(row["age"]) < 0 {
			return errors.New("animals.age must be non-negative")
		}
		return nil
	}

	s.defaults[domain.TableAdoptions] = func(now time.Time) domain.Fields {
		return domain.Fields{
			"address": "", "has_pets": false, "existing_pets": "", "home_type": "",
			"has_yard": false, "work_schedule": "", "experience": "",
			"status": string(domain.AdoptionStatusPending), "created_at": now,
		}
	}
	s.checks[domain.TableAdoptions] = func(row domain.Fields) error {
		return checkEnum(row, "status", domain.AdoptionStatus(asString(row["status"])).Valid())
	}
	s.refs[domain.TableAdoptions] = []foreignKey{{column: "animal_id", refTable: domain.TableAnimals, onCascade: true}}

	s.defaults[domain.TableReports] = func(now time.Time) domain.Fields {
		return domain.Fields{"coordinates": nil, "images": "[]", "status": string(domain.ReportStatusPending), "created_at": now}
	}
	s.checks[domain.TableReports] = func(row domain.Fields) error {
		return checkEnum(row, "status", domain.ReportStatus(asString(row["status"])).Valid())
	}

	s.defaults[domain.TableVolunteers] = func(now time.Time) domain.Fields {
		return domain.Fields{
			"experience": "", "status": string(domain.VolunteerStatusPending),
			"created_at": now, "updated_at": now,
		}
	}
	s.checks[domain.TableVolunteers] = func(row domain.Fields) error {
		return checkEnum(row, "status", domain.VolunteerStatus(asString(row["status"])).Valid())
	}

	s.checks[domain.TableVolunteerSkills] = func(row domain.Fields) error {
		if asString(row["label"]) == "" {
			return errors.New("volunteer_skills.label must not be empty")
		}
		return nil
	}
	s.refs[domain.TableVolunteerSkills] = []foreignKey{{column: "volunteer_id", refTable: domain.TableVolunteers, onCascade: true}}

	s.defaults[domain.TableDonations] = func(now time.Time) domain.Fields {
		return domain.Fields{
			"currency": domain.DefaultCurrency, "capture_id": nil, "admin_id": nil,
			"status": string(domain.DonationStatusPending), "created_at": now, "completed_at": nil,
		}
	}
	s.unique[domain.TableDonations] = [][]string{{"external_order_id"}}
	s.checks[domain.TableDonations] = func(row domain.Fields) error {
		if !asDecimal(row["amount"]).IsPositive() {
			return errors.New("donations.amount must be greater than zero")
		}
		return checkEnum(row, "status", domain.DonationStatus(asString(row["status"])) == domain.DonationStatusPending ||
			domain.DonationStatus(asString(row["status"])) == domain.DonationStatusCompleted)
	}
	s.refs[domain.TableDonations] = []foreignKey{{column: "admin_id", refTable: domain.TableAdmins}}
}

func checkEnum(row domain.Fields, column string, ok bool) error {
	if ok {
		return nil
	}
	return fmt.Errorf("invalid %s value %v", column, row[column])
}

// normalize приводит значения к каноническим типам, чтобы сравнение было предсказуемым.
func normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case int64, bool, string, decimal.Decimal:
		return val
	case time.Time:
		return val.UTC()
	case []byte:
		return string(val)
	case *string:
		if val == nil {
			return nil
		}
		return *val
	case *int64:
		if val == nil {
			return nil
		}
		return *val
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	}
	return v
}

func valuesEqual(a, b any) bool {
	a, b = normalize(a), normalize(b)
	if da, ok := a.(decimal.Decimal); ok {
		db, ok := b.(decimal.Decimal)
		return ok && da.Equal(db)
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

func matches(row, match domain.Fields) bool {
	for col, want := range match {
		if !valuesEqual(row[col], want) {
			return false
		}
	}
	return true
}

func sameValues(a, b domain.Fields, cols []string) bool {
	for _, col := range cols {
		if a[col] == nil || !valuesEqual(a[col], b[col]) {
			return false
		}
	}
	return true
}

func asInt64(v any) int64 {
	if n, ok := normalize(v).(int64); ok {
		return n
	}
	return 0
}

func asString(v any) string {
	if s, ok := normalize(v).(string); ok {
		return s
	}
	return ""
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asTime(v any) time.Time {
	t, _ := normalize(v).(time.Time)
	return t
}

func asTimePtr(v any) *time.Time {
	t, ok := normalize(v).(time.Time)
	if !ok {
		return nil
	}
	return &t
}

func asInt64Ptr(v any) *int64 {
	n, ok := normalize(v).(int64)
	if !ok {
		return nil
	}
	return &n
}

func asDecimal(v any) decimal.Decimal {
	d, _ := v.(decimal.Decimal)
	return d
}
