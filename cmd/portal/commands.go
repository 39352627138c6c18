package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/angelmondragon/loyalty-portal/internal/navigation"
	"github.com/angelmondragon/loyalty-portal/internal/onboarding"
	"github.com/angelmondragon/loyalty-portal/internal/session"
	"github.com/angelmondragon/loyalty-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/logger"
	"github.com/angelmondragon/loyalty-portal/pkg/types"
	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

type app struct {
	session   *session.Store
	newWizard func() (*onboarding.Controller, error)
	registry  *prometheus.Registry
	logg      *logger.Logger
	out       io.Writer
}

type command func(ctx context.Context, args []string) error

func (a *app) commands() map[string]command {
	return map[string]command{
		"login":    a.login,
		"logout":   a.logout,
		"whoami":   a.whoami,
		"refresh":  a.refresh,
		"register": a.register,
		"onboard":  a.onboard,
	}
}

// run executes one command and returns the process exit code.
func (a *app) run(ctx context.Context, name string, args []string) int {
	cmd, ok := a.commands()[name]
	if !ok {
		fmt.Fprintf(a.out, "unknown command %q\n\n%s", name, usage)
		return 2
	}
	if err := cmd(ctx, args); err != nil {
		a.logg.Debug(a.logg.WithField(ctx, "command", name), "command failed")
		a.report(err)
		return 1
	}
	return 0
}

func (a *app) report(err error) {
	fmt.Fprintf(a.out, "error: %s\n", pkgerrors.UserMessage(err))
	typed := pkgerrors.As(err)
	if typed == nil {
		return
	}
	fields, ok := typed.Details().(map[string]string)
	if !ok {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(a.out, "  %s: %s\n", k, fields[k])
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("LOYALTY_PORTAL_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid login flags")
	}

	identity, err := a.session.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.session.Notice().Message)
	fmt.Fprintf(a.out, "Signed in as %s (%s)\n", identity.Email, identity.Role)
	fmt.Fprintf(a.out, "Home: %s\n", navigation.HomePath(identity.Role))
	return nil
}

func (a *app) logout(ctx context.Context, _ []string) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func (a *app) whoami(_ context.Context, _ []string) error {
	identity, ok := a.session.Identity()
	if !ok || !a.session.IsAuthenticated() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "not signed in")
	}

	name := identity.DisplayName
	if name == "" {
		name = strings.TrimSpace(identity.FirstName + " " + identity.LastName)
	}
	fmt.Fprintf(a.out, "%s <%s>\n", name, identity.Email)
	fmt.Fprintf(a.out, "Role: %s\n", identity.Role)
	if business, ok := a.session.Business(); ok {
		fmt.Fprintf(a.out, "Business: %s (%s)\n", business.BusinessName, business.Status)
	}
	if a.session.IsTokenExpired(a.session.Tokens().AccessToken) {
		fmt.Fprintln(a.out, "Access token: expired, run `portal refresh`")
	} else {
		fmt.Fprintln(a.out, "Access token: valid")
	}
	fmt.Fprintln(a.out, "Menu:")
	for _, item := range navigation.Menu(identity.Role) {
		fmt.Fprintf(a.out, "  %-18s %s\n", item.Label, item.Path)
	}
	return nil
}

func (a *app) refresh(ctx context.Context, _ []string) error {
	if _, err := a.session.RefreshAccessToken(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Access token refreshed")
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register")
	var fields types.RegistrationFields
	role := fs.String("role", enums.RoleAdmin.String(), "admin or merchant")
	fs.StringVar(&fields.FirstName, "first-name", "", "first name")
	fs.StringVar(&fields.LastName, "last-name", "", "last name")
	fs.StringVar(&fields.Email, "email", "", "account email")
	fs.StringVar(&fields.Password, "password", os.Getenv("LOYALTY_PORTAL_PASSWORD"), "account password")
	fs.StringVar(&fields.PhoneNumber, "phone", "", "phone number")
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid register flags")
	}
	fields.Role = enums.Role(strings.ToLower(strings.TrimSpace(*role)))

	if _, err := a.session.Register(ctx, fields); err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.session.Notice().Message)
	if fields.Role == enums.RoleMerchant {
		fmt.Fprintln(a.out, "Run `portal onboard` to submit your business profile.")
	}
	return nil
}

// onboard registers a merchant and walks the wizard through profile creation
// and media upload using the account and profile JSON files given.
func (a *app) onboard(ctx context.Context, args []string) error {
	fs := newFlagSet("onboard")
	accountPath := fs.String("account", "", "registration JSON file")
	profilePath := fs.String("profile", "", "business profile JSON file")
	logoPath := fs.String("logo", "", "logo image path")
	bannerPath := fs.String("banner", "", "banner image path")
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid onboard flags")
	}

	var fields types.RegistrationFields
	if err := readJSON(*accountPath, &fields); err != nil {
		return err
	}
	if fields.Role == "" {
		fields.Role = enums.RoleMerchant
	}
	if fields.Role != enums.RoleMerchant {
		return pkgerrors.New(pkgerrors.CodeValidation, "onboarding is for merchant accounts")
	}

	logo, err := readMedia(*logoPath)
	if err != nil {
		return err
	}
	banner, err := readMedia(*bannerPath)
	if err != nil {
		return err
	}

	wizard, err := a.newWizard()
	if err != nil {
		return err
	}
	defer wizard.Close()

	if err := wizard.Register(ctx, fields); err != nil {
		return withFieldErrors(err, wizard)
	}
	if wizard.Phase() != enums.OnboardingPhaseAwaitingProfile {
		return pkgerrors.New(pkgerrors.CodeStateConflict, wizard.Snapshot().Notice.Message)
	}
	a.progress(wizard)

	draft := wizard.Snapshot().Draft
	if err := readJSON(*profilePath, &draft); err != nil {
		return err
	}

	steps := []func() error{
		func() error { return wizard.SetBasicInfo(draft.BasicInfo) },
		func() error { return wizard.Continue(ctx) },
		func() error { return wizard.SetAddress(draft.Address) },
		func() error { return wizard.Continue(ctx) },
		func() error {
			return multierr.Append(
				wizard.SetDescription(draft.Details.Description),
				wizard.SetHours(draft.Details.Hours),
			)
		},
		func() error { return wizard.Continue(ctx) },
		func() error { return wizard.StageLogo(logo) },
		func() error { return wizard.StageBanner(banner) },
		func() error { return wizard.CompleteSetup(ctx) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return withFieldErrors(err, wizard)
		}
	}

	state := wizard.Snapshot()
	fmt.Fprintf(a.out, "Business %s submitted\n", state.BusinessID)
	fmt.Fprintln(a.out, state.Notice.Message)
	return nil
}

// withFieldErrors attaches the wizard's field errors when err carries none.
func withFieldErrors(err error, wizard *onboarding.Controller) error {
	if typed := pkgerrors.As(err); typed != nil && typed.Details() != nil {
		return err
	}
	fieldErrs := wizard.Snapshot().FieldErrors
	if len(fieldErrs) == 0 {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeOf(err), err, pkgerrors.UserMessage(err)).WithDetails(fieldErrs)
}

func (a *app) progress(wizard *onboarding.Controller) {
	state := wizard.Snapshot()
	if state.Notice.Message != "" {
		fmt.Fprintln(a.out, state.Notice.Message)
	}
}

func readJSON(path string, out any) error {
	if strings.TrimSpace(path) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "a JSON file path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("cannot read %s", filepath.Base(path)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("%s is not valid JSON", filepath.Base(path)))
	}
	return nil
}

// readMedia loads an image from disk. The wizard enforces the size and type
// limits on staging.
func readMedia(path string) (types.MediaFile, error) {
	if strings.TrimSpace(path) == "" {
		return types.MediaFile{}, pkgerrors.New(pkgerrors.CodeValidation, "both --logo and --banner are required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return types.MediaFile{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("cannot read %s", filepath.Base(path)))
	}
	return types.MediaFile{
		Name:        filepath.Base(path),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}
