package forms

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/stockstash/internal/interfaces"
	"github.com/bobmcallan/stockstash/internal/models"
)

// Field names as submitted by the browser.
const (
	FieldUsername        = "username"
	FieldFirstName       = "fname"
	FieldLastName        = "lname"
	FieldBrokerage       = "brokerage"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
	FieldRemember        = "remember"
	FieldTicker          = "ticker"
	FieldPrice           = "price"
	FieldQuantity        = "quantity"
	FieldLowPrice        = "lowprice"
	FieldHighPrice       = "highprice"
)

const (
	MsgUsernameTaken   = "Username taken! Please try another..."
	MsgEmailNotFound   = "Email does not exist"
	MsgNoAccount       = "There is no account with that email."
	MsgInvalidTicker   = "Error! Not a valid ticker."
	MsgLowAboveHigh    = "Error! Low Price must be lower than High Price"
	MsgPasswordsDiffer = "Field must be equal to password."
)

// TickerChecker validates ticker symbols.
type TickerChecker interface {
	IsValidTicker(ctx context.Context, ticker string) bool
}

// Validator builds the application's schemas over the lookups their
// cross-field rules need.
type Validator struct {
	users   interfaces.UserLookup
	tickers TickerChecker
}

// NewValidator creates a Validator.
func NewValidator(users interfaces.UserLookup, tickers TickerChecker) *Validator {
	return &Validator{users: users, tickers: tickers}
}

func (v *Validator) exists(ctx context.Context, username string) (*models.User, bool) {
	u, err := v.users.FindByIdentifier(ctx, username)
	return u, err == nil && u != nil
}

func (v *Validator) usernameFree(exclude string) Check {
	return func(ctx context.Context, vals Values) string {
		if u, ok := v.exists(ctx, vals.Trimmed(FieldUsername)); ok && u.ID != exclude {
			return MsgUsernameTaken
		}
		return ""
	}
}

func (v *Validator) usernameKnown(msg string) Check {
	return func(ctx context.Context, vals Values) string {
		if _, ok := v.exists(ctx, vals.Trimmed(FieldUsername)); !ok {
			return msg
		}
		return ""
	}
}

func (v *Validator) validTicker(ctx context.Context, vals Values) string {
	if !v.tickers.IsValidTicker(ctx, vals.Trimmed(FieldTicker)) {
		return MsgInvalidTicker
	}
	return ""
}

func passwordsMatch(_ context.Context, vals Values) string {
	if vals.Get(FieldPassword) != vals.Get(FieldConfirmPassword) {
		return MsgPasswordsDiffer
	}
	return ""
}

func lowBelowHigh(_ context.Context, vals Values) string {
	low := decimal.RequireFromString(vals.Trimmed(FieldLowPrice))
	high := decimal.RequireFromString(vals.Trimmed(FieldHighPrice))
	if !low.LessThan(high) {
		return MsgLowAboveHigh
	}
	return ""
}

var (
	emailRules = []Rule{Required(), Length(2, 320), Email()}
	nameRules  = []Rule{Required(), Length(1, 100)}
)

// RegistrationSchema is the sign up form.
func (v *Validator) RegistrationSchema() *Schema {
	return &Schema{
		Name: "registration",
		Fields: []Field{
			{Name: FieldUsername, Rules: emailRules},
			{Name: FieldFirstName, Rules: nameRules},
			{Name: FieldLastName, Rules: nameRules},
			{Name: FieldPassword, Rules: []Rule{Required(), Length(6, 20)}},
			{Name: FieldConfirmPassword, Rules: []Rule{Required()}},
		},
		Cross: []CrossRule{
			{Field: FieldUsername, Check: v.usernameFree("")},
			{Field: FieldConfirmPassword, DependsOn: []string{FieldPassword}, Check: passwordsMatch},
		},
	}
}

// AccountSchema is the profile form of the user with id self.
func (v *Validator) AccountSchema(self string) *Schema {
	return &Schema{
		Name: "account",
		Fields: []Field{
			{Name: FieldUsername, Rules: emailRules},
			{Name: FieldFirstName, Rules: []Rule{Length(1, 100)}},
			{Name: FieldLastName, Rules: []Rule{Length(1, 100)}},
		},
		Cross: []CrossRule{
			{Field: FieldUsername, Check: v.usernameFree(self)},
		},
	}
}

// LoginSchema is the sign in form.
func (v *Validator) LoginSchema() *Schema {
	return &Schema{
		Name: "login",
		Fields: []Field{
			{Name: FieldUsername, Rules: []Rule{Required(), Email()}},
			{Name: FieldPassword, Rules: []Rule{Required()}},
		},
		Cross: []CrossRule{
			{Field: FieldUsername, Check: v.usernameKnown(MsgEmailNotFound)},
		},
	}
}

// AddStockSchema is the add-position form.
func (v *Validator) AddStockSchema() *Schema {
	return &Schema{
		Name: "add_stock",
		Fields: []Field{
			{Name: FieldTicker, Rules: []Rule{Required()}},
			{Name: FieldPrice, Rules: []Rule{Required(), PositiveDecimal()}},
			{Name: FieldQuantity, Rules: []Rule{Required(), PositiveInt()}},
		},
		Cross: []CrossRule{
			{Field: FieldTicker, DependsOn: []string{FieldPrice, FieldQuantity}, Check: v.validTicker},
		},
	}
}

// AddWatchSchema is the add-watchlist-entry form. The range is checked
// before the ticker, so an inverted range never costs a provider call.
func (v *Validator) AddWatchSchema() *Schema {
	return &Schema{
		Name: "add_watch",
		Fields: []Field{
			{Name: FieldTicker, Rules: []Rule{Required()}},
			{Name: FieldLowPrice, Rules: []Rule{Required(), PositiveDecimal()}},
			{Name: FieldHighPrice, Rules: []Rule{Required(), PositiveDecimal()}},
		},
		Cross: []CrossRule{
			{Field: FieldTicker, DependsOn: []string{FieldLowPrice, FieldHighPrice}, Check: lowBelowHigh},
			{Field: FieldTicker, DependsOn: []string{FieldLowPrice, FieldHighPrice}, Check: v.validTicker},
		},
	}
}

// RequestResetSchema is the "forgot password" form.
func (v *Validator) RequestResetSchema() *Schema {
	return &Schema{
		Name: "request_reset",
		Fields: []Field{
			{Name: FieldUsername, Rules: emailRules},
		},
		Cross: []CrossRule{
			{Field: FieldUsername, Check: v.usernameKnown(MsgNoAccount)},
		},
	}
}

// ResetPasswordSchema is the new-password form reached from a reset link.
func ResetPasswordSchema() *Schema {
	return &Schema{
		Name: "reset_password",
		Fields: []Field{
			{Name: FieldPassword, Rules: []Rule{Required(), Length(6, 320)}},
			{Name: FieldConfirmPassword, Rules: []Rule{Required()}},
		},
		Cross: []CrossRule{
			{Field: FieldConfirmPassword, DependsOn: []string{FieldPassword}, Check: passwordsMatch},
		},
	}
}

// Registration is a decoded sign up form.
type Registration struct {
	Username string
	Password string
	Profile  models.Profile
}

// Registration validates and decodes a sign up form.
func (v *Validator) Registration(ctx context.Context, vals Values) (Registration, Result) {
	res := v.RegistrationSchema().Validate(ctx, vals)
	if !res.Valid() {
		return Registration{}, res
	}
	username := vals.Trimmed(FieldUsername)
	return Registration{
		Username: username,
		Password: vals.Get(FieldPassword),
		Profile:  models.NewProfile(username, vals.Trimmed(FieldFirstName), vals.Trimmed(FieldLastName), vals.Trimmed(FieldBrokerage)),
	}, res
}

// Account validates and decodes a profile form for the user with id self.
func (v *Validator) Account(ctx context.Context, self string, vals Values) (models.Profile, Result) {
	res := v.AccountSchema(self).Validate(ctx, vals)
	if !res.Valid() {
		return models.Profile{}, res
	}
	return models.NewProfile(vals.Trimmed(FieldUsername), vals.Trimmed(FieldFirstName),
		vals.Trimmed(FieldLastName), vals.Trimmed(FieldBrokerage)), res
}

// Login is a decoded sign in form.
type Login struct {
	Username string
	Password string
	Remember bool
}

func checked(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "y", "yes", "on", "true", "1":
		return true
	}
	return false
}

// Login validates and decodes a sign in form.
func (v *Validator) Login(ctx context.Context, vals Values) (Login, Result) {
	res := v.LoginSchema().Validate(ctx, vals)
	if !res.Valid() {
		return Login{}, res
	}
	return Login{
		Username: vals.Trimmed(FieldUsername),
		Password: vals.Get(FieldPassword),
		Remember: checked(vals.Get(FieldRemember)),
	}, res
}

// AddStock is a decoded add-position form.
type AddStock struct {
	Ticker   string
	Price    decimal.Decimal
	Quantity int64
}

// AddStock validates and decodes an add-position form.
func (v *Validator) AddStock(ctx context.Context, vals Values) (AddStock, Result) {
	res := v.AddStockSchema().Validate(ctx, vals)
	if !res.Valid() {
		return AddStock{}, res
	}
	qty, _ := strconv.ParseInt(vals.Trimmed(FieldQuantity), 10, 64)
	return AddStock{
		Ticker:   vals.Trimmed(FieldTicker),
		Price:    decimal.RequireFromString(vals.Trimmed(FieldPrice)),
		Quantity: qty,
	}, res
}

// AddWatch is a decoded add-watchlist-entry form.
type AddWatch struct {
	Ticker string
	Low    decimal.Decimal
	High   decimal.Decimal
}

// AddWatch validates and decodes an add-watchlist-entry form.
func (v *Validator) AddWatch(ctx context.Context, vals Values) (AddWatch, Result) {
	res := v.AddWatchSchema().Validate(ctx, vals)
	if !res.Valid() {
		return AddWatch{}, res
	}
	return AddWatch{
		Ticker: vals.Trimmed(FieldTicker),
		Low:    decimal.RequireFromString(vals.Trimmed(FieldLowPrice)),
		High:   decimal.RequireFromString(vals.Trimmed(FieldHighPrice)),
	}, res
}

// RequestReset validates a "forgot password" form and returns the identifier.
func (v *Validator) RequestReset(ctx context.Context, vals Values) (string, Result) {
	res := v.RequestResetSchema().Validate(ctx, vals)
	if !res.Valid() {
		return "", res
	}
	return vals.Trimmed(FieldUsername), res
}

// ResetPassword validates a new-password form and returns the password.
func ResetPassword(ctx context.Context, vals Values) (string, Result) {
	res := ResetPasswordSchema().Validate(ctx, vals)
	if !res.Valid() {
		return "", res
	}
	return vals.Get(FieldPassword), res
}
