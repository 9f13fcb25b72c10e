package pkg

import (
	"fmt"
	"math"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"
)

// dateTimeCAPI mirrors the leading members of the PyDateTime_CAPI struct
// published through the "datetime.datetime_CAPI" capsule. The layout has
// been stable since 3.7.
type dateTimeCAPI struct {
	DateType     PyObject
	DateTimeType PyObject
	TimeType     PyObject
	DeltaType    PyObject
	TZInfoType   PyObject
	TimeZoneUTC  PyObject

	DateFromDate            uintptr
	DateTimeFromDateAndTime uintptr
}

type dateTimeAPI struct {
	dateTimeCAPI

	dateFromDate            func(year, month, day int32, typ PyObject) PyObject
	dateTimeFromDateAndTime func(year, month, day, hour, minute, second, usecond int32, tzinfo PyObject, typ PyObject) PyObject
}

// DateFields are the calendar fields of a datetime.date.
type DateFields struct {
	Year  int `json:"year" yaml:"year"`
	Month int `json:"month" yaml:"month"`
	Day   int `json:"day" yaml:"day"`
}

// DateTimeFields are the calendar and clock fields of a naive datetime.datetime.
type DateTimeFields struct {
	DateFields  `yaml:",inline"`
	Hour        int `json:"hour" yaml:"hour"`
	Minute      int `json:"minute" yaml:"minute"`
	Second      int `json:"second" yaml:"second"`
	Microsecond int `json:"microsecond" yaml:"microsecond"`
}

// FieldsFromTime returns the fields of t in t's location.
func FieldsFromTime(t time.Time) DateTimeFields {
	return DateTimeFields{
		DateFields:  DateFields{Year: t.Year(), Month: int(t.Month()), Day: t.Day()},
		Hour:        t.Hour(),
		Minute:      t.Minute(),
		Second:      t.Second(),
		Microsecond: t.Nanosecond() / 1000,
	}
}

// Time converts the fields to a time.Time in loc.
func (f DateTimeFields) Time(loc *time.Location) time.Time {
	return time.Date(f.Year, time.Month(f.Month), f.Day, f.Hour, f.Minute, f.Second, f.Microsecond*1000, loc)
}

func (f DateTimeFields) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%06d", f.Year, f.Month, f.Day, f.Hour, f.Minute, f.Second, f.Microsecond)
}

func (f DateFields) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", f.Year, f.Month, f.Day)
}

// InitDateTime imports the datetime C API. The constructors and accessors
// call it on first use; the result is dropped by Finalize.
func (p *PythonLib) InitDateTime() error {
	return p.thread.call(func() error {
		_, err := p.loadDateTime()
		return err
	})
}

func (p *PythonLib) loadDateTime() (*dateTimeAPI, error) {
	if p.api.Py_IsInitialized() == 0 {
		return nil, ErrNotInitialized
	}
	if p.dateTime != nil {
		return p.dateTime, nil
	}

	capsule := p.api.PyCapsule_Import("datetime.datetime_CAPI", 0)
	if capsule == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoDateTimeAPI, p.fetchError("import datetime"))
	}

	api := &dateTimeAPI{
		dateTimeCAPI: *(*dateTimeCAPI)(unsafe.Pointer(capsule)),
	}
	purego.RegisterFunc(&api.dateFromDate, api.DateFromDate)
	purego.RegisterFunc(&api.dateTimeFromDateAndTime, api.DateTimeFromDateAndTime)

	p.dateTime = api
	return api, nil
}

var dateTimeFieldNames = []string{"year", "month", "day", "hour", "minute", "second", "microsecond"}

// cInts narrows fields to C ints so the runtime never sees a wrapped value.
func cInts(op string, values ...int) ([]int32, error) {
	out := make([]int32, len(values))
	for i, v := range values {
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, &PythonError{
				Op:      op,
				Type:    "OverflowError",
				Message: fmt.Sprintf("%s %d does not fit in a C int", dateTimeFieldNames[i], v),
			}
		}
		out[i] = int32(v)
	}
	return out, nil
}

// NewDate returns a new reference to a datetime.date. Out-of-range fields are
// rejected by the runtime and reported as a *PythonError.
func (p *PythonLib) NewDate(year, month, day int) (PyObject, error) {
	var o PyObject
	err := p.thread.call(func() error {
		var err error
		o, err = p.newDate(year, month, day)
		return err
	})
	return o, err
}

func (p *PythonLib) newDate(year, month, day int) (PyObject, error) {
	f, err := cInts("date", year, month, day)
	if err != nil {
		return 0, err
	}
	api, err := p.loadDateTime()
	if err != nil {
		return 0, err
	}
	o := api.dateFromDate(f[0], f[1], f[2], api.DateType)
	if o == 0 {
		return 0, p.fetchError("date")
	}
	return o, nil
}

// NewDateTime returns a new reference to a naive datetime.datetime.
func (p *PythonLib) NewDateTime(year, month, day, hour, minute, second, usecond int) (PyObject, error) {
	var o PyObject
	err := p.thread.call(func() error {
		var err error
		o, err = p.newDateTime(year, month, day, hour, minute, second, usecond)
		return err
	})
	return o, err
}

func (p *PythonLib) newDateTime(year, month, day, hour, minute, second, usecond int) (PyObject, error) {
	f, err := cInts("datetime", year, month, day, hour, minute, second, usecond)
	if err != nil {
		return 0, err
	}
	api, err := p.loadDateTime()
	if err != nil {
		return 0, err
	}
	o := api.dateTimeFromDateAndTime(f[0], f[1], f[2], f[3], f[4], f[5], f[6], p.none(), api.DateTimeType)
	if o == 0 {
		return 0, p.fetchError("datetime")
	}
	return o, nil
}

// NewDateTimeFromTime converts t, dropping its location.
func (p *PythonLib) NewDateTimeFromTime(t time.Time) (PyObject, error) {
	f := FieldsFromTime(t)
	return p.NewDateTime(f.Year, f.Month, f.Day, f.Hour, f.Minute, f.Second, f.Microsecond)
}

// DateInfo reads the fields of a datetime.date, which includes datetime.datetime.
func (p *PythonLib) DateInfo(o PyObject) (DateFields, error) {
	var f DateFields
	err := p.thread.call(func() error {
		api, err := p.loadDateTime()
		if err != nil {
			return err
		}
		if err := p.checkInstance(o, api.DateType); err != nil {
			return err
		}
		f, err = p.dateFields(o)
		return err
	})
	return f, err
}

// DateTimeInfo reads the fields of a datetime.datetime.
func (p *PythonLib) DateTimeInfo(o PyObject) (DateTimeFields, error) {
	var f DateTimeFields
	err := p.thread.call(func() error {
		var err error
		f, err = p.dateTimeInfo(o)
		return err
	})
	return f, err
}

func (p *PythonLib) dateTimeInfo(o PyObject) (DateTimeFields, error) {
	var f DateTimeFields
	api, err := p.loadDateTime()
	if err != nil {
		return f, err
	}
	if err := p.checkInstance(o, api.DateTimeType); err != nil {
		return f, err
	}
	if f.DateFields, err = p.dateFields(o); err != nil {
		return f, err
	}
	for _, a := range []struct {
		name string
		dst  *int
	}{
		{"hour", &f.Hour},
		{"minute", &f.Minute},
		{"second", &f.Second},
		{"microsecond", &f.Microsecond},
	} {
		if *a.dst, err = p.intAttr(o, a.name); err != nil {
			return f, err
		}
	}
	return f, nil
}

func (p *PythonLib) checkInstance(o PyObject, typ PyObject) error {
	if o == 0 {
		return ErrNotDateTime
	}
	switch p.api.PyObject_IsInstance(o, typ) {
	case 1:
		return nil
	case 0:
		return ErrNotDateTime
	default:
		return p.fetchError("isinstance")
	}
}

func (p *PythonLib) dateFields(o PyObject) (DateFields, error) {
	var f DateFields
	var err error
	if f.Year, err = p.intAttr(o, "year"); err != nil {
		return f, err
	}
	if f.Month, err = p.intAttr(o, "month"); err != nil {
		return f, err
	}
	f.Day, err = p.intAttr(o, "day")
	return f, err
}

func (p *PythonLib) intAttr(o PyObject, name string) (int, error) {
	a := p.api.PyObject_GetAttrString(o, name)
	if a == 0 {
		return 0, p.fetchError(name)
	}
	defer p.api.Py_DecRef(a)

	v := p.api.PyLong_AsLong(a)
	if v == -1 && p.api.PyErr_Occurred() != 0 {
		return 0, p.fetchError(name)
	}
	return int(v), nil
}
