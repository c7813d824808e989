package tenant

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrInvalidConfig  = errors.New("invalid tenant config")
)

// DefaultTenantID is used when a request carries no tenant identification.
const DefaultTenantID = "default"

// Logical table names. Everything outside the per-tenant config refers to
// tables and fields by these names only; the opaque backend identifiers
// live exclusively in Config.
const (
	TableWorkSchedule     = "WORK_SCHEDULE"
	TableWorkScheduleView = "WORK_SCHEDULE_VIEW"
	TableDrivers          = "DRIVERS"
	TableCustomers        = "CUSTOMERS"
	TableVehicles         = "VEHICLES"
	TableVehicleTypes     = "VEHICLE_TYPES"
)

// Logical field names, grouped by table.
const (
	FieldDate                = "DATE"
	FieldCustomer            = "CUSTOMER"
	FieldPickupTime          = "PICKUP_TIME"
	FieldDescription         = "DESCRIPTION"
	FieldDropoffTime         = "DROPOFF_TIME"
	FieldVehicleType         = "VEHICLE_TYPE"
	FieldDriver              = "DRIVER"
	FieldVehicleNum          = "VEHICLE_NUM"
	FieldSent                = "SENT"
	FieldApproved            = "APPROVED"
	FieldPriceClientExcl     = "PRICE_CLIENT_EXCL"
	FieldPriceClientIncl     = "PRICE_CLIENT_INCL"
	FieldPriceDriverExcl     = "PRICE_DRIVER_EXCL"
	FieldPriceDriverIncl     = "PRICE_DRIVER_INCL"
	FieldProfit              = "PROFIT"
	FieldDriverNotes         = "DRIVER_NOTES"
	FieldManagerNotes        = "MANAGER_NOTES"
	FieldOrderName           = "ORDER_NAME"
	FieldMobile              = "MOBILE"
	FieldIDNum               = "ID_NUM"
	FieldOrderForm           = "ORDER_FORM"
	FieldOrderFormDate       = "ORDER_FORM_DATE"
	FieldOrderFormAttachment = "ORDER_FORM_ATTACHMENT"

	FieldFirstName  = "FIRST_NAME"
	FieldLastName   = "LAST_NAME"
	FieldPhone      = "PHONE"
	FieldDriverType = "DRIVER_TYPE"
	FieldCarNumber  = "CAR_NUMBER"
	FieldStatus     = "STATUS"

	FieldName                = "NAME"
	FieldHP                  = "HP"
	FieldContactName         = "CONTACT_NAME"
	FieldEmail               = "EMAIL"
	FieldPaymentMethod       = "PAYMENT_METHOD"
	FieldOngoingPayment      = "ONGOING_PAYMENT"
	FieldAccountingKey       = "ACCOUNTING_KEY"
	FieldCreatedInAccounting = "CREATED_IN_ACCOUNTING"
)

// Field groups used as keys of Config.Fields.
const (
	GroupWorkSchedule = "workSchedule"
	GroupDrivers      = "drivers"
	GroupCustomers    = "customers"
	GroupVehicles     = "vehicles"
)

// Config holds one tenant's backend connection parameters and the mapping
// from logical table/field names to the backend's opaque identifiers.
// Configs are created out-of-band at deployment time and are never mutated
// at runtime.
type Config struct {
	ID         string                       `json:"id" validate:"required"`
	Name       string                       `json:"name" validate:"required"`
	APIURL     string                       `json:"apiUrl" validate:"required,url"`
	BaseID     string                       `json:"baseId" validate:"required"`
	ClerkOrgID string                       `json:"clerkOrgId,omitempty"`
	Tables     map[string]string            `json:"tables" validate:"required"`
	Fields     map[string]map[string]string `json:"fields" validate:"required"`
}

var validate = validator.New()

// Validate checks the structural invariants of a tenant config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	return nil
}

// TableID resolves a logical table name to the backend table identifier.
func (c *Config) TableID(name string) (string, bool) {
	id, ok := c.Tables[name]
	return id, ok
}

// FieldID resolves a logical field name within a field group to the
// backend field identifier.
func (c *Config) FieldID(group, name string) (string, bool) {
	fields, ok := c.Fields[group]
	if !ok {
		return "", false
	}
	id, ok := fields[name]
	return id, ok
}

// Context is the per-request result of tenant resolution: the tenant's
// config plus the backend credential scoped to it. It is cheap to build
// (the config itself is cached) and is never reused across requests.
type Context struct {
	TenantID   string
	Config     *Config
	Credential string
}
