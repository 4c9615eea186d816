package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/paneladmin/apiserver/internal/services"
	"github.com/paneladmin/apiserver/types"
)

const maxBodyBytes = 1 << 20

var errMissingField = errors.New("missing required field")

// activityFlag accepts an integral JSON number or a boolean.
type activityFlag int

func (a *activityFlag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*a = 1
		return nil
	case "false":
		*a = 0
		return nil
	}

	var number float64
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("activity: %w", err)
	}
	if number != math.Trunc(number) || number > math.MaxInt32 || number < math.MinInt32 {
		return errors.New("activity must be an integer")
	}
	*a = activityFlag(number)
	return nil
}

// userFieldsRequest holds the fields shared by create and edit. Pointers
// distinguish absent keys from zero values.
type userFieldsRequest struct {
	Email     *string       `json:"email"`
	Name      *string       `json:"name"`
	Activity  *activityFlag `json:"activity"`
	Lang      *string       `json:"lang"`
	ValidTill *string       `json:"valid_till"`
}

type createUserRequest struct {
	userFieldsRequest
	Password *string `json:"password"`
}

func (req userFieldsRequest) fields() (services.UserFields, error) {
	email, err := requiredString("email", req.Email)
	if err != nil {
		return services.UserFields{}, err
	}
	name, err := requiredString("name", req.Name)
	if err != nil {
		return services.UserFields{}, err
	}
	lang, err := requiredString("lang", req.Lang)
	if err != nil {
		return services.UserFields{}, err
	}
	if req.Activity == nil {
		return services.UserFields{}, fmt.Errorf("%w: activity", errMissingField)
	}
	rawValidTill, err := requiredString("valid_till", req.ValidTill)
	if err != nil {
		return services.UserFields{}, err
	}
	validTill, err := types.ParseDateTime(rawValidTill)
	if err != nil {
		return services.UserFields{}, fmt.Errorf("valid_till: %w", err)
	}

	return services.UserFields{
		Email:     email,
		Name:      name,
		Activity:  int(*req.Activity),
		Lang:      lang,
		ValidTill: validTill,
	}, nil
}

func requiredString(field string, value *string) (string, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return "", fmt.Errorf("%w: %s", errMissingField, field)
	}
	return strings.TrimSpace(*value), nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return errors.New("decode body: unexpected trailing data")
	}
	return nil
}

func parseCreateUser(w http.ResponseWriter, r *http.Request) (services.CreateUserInput, error) {
	var req createUserRequest
	if err := decodeBody(w, r, &req); err != nil {
		return services.CreateUserInput{}, err
	}

	fields, err := req.fields()
	if err != nil {
		return services.CreateUserInput{}, err
	}
	if req.Password == nil || *req.Password == "" {
		return services.CreateUserInput{}, fmt.Errorf("%w: password", errMissingField)
	}

	return services.CreateUserInput{UserFields: fields, Password: *req.Password}, nil
}

func parseEditUser(w http.ResponseWriter, r *http.Request) (services.UserFields, error) {
	var req userFieldsRequest
	if err := decodeBody(w, r, &req); err != nil {
		return services.UserFields{}, err
	}
	return req.fields()
}
