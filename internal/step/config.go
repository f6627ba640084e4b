// SPDX-License-Identifier: MPL-2.0

package step

import (
	"errors"
	"fmt"
	"strings"

	"github.com/provar-ci/provar-ci/internal/secret"
	"github.com/provar-ci/provar-ci/pkg/platform"
)

const (
	BrowserChromeHeadless Browser = "Chrome_Headless"
	BrowserChrome         Browser = "Chrome"
	BrowserEdge           Browser = "Edge"
	BrowserEdgeLegacy     Browser = "Edge_Legacy"
	BrowserFirefox        Browser = "Firefox"
	BrowserSafari         Browser = "Safari"

	CacheReuse   CacheSetting = "Reuse"
	CacheRefresh CacheSetting = "Refresh"
	CacheReload  CacheSetting = "Reload"

	ResultsIncrement ResultsPathSetting = "Increment"
	ResultsReplace   ResultsPathSetting = "Replace"
	ResultsFail      ResultsPathSetting = "Fail"
)

// Defaults for a freshly configured step.
const (
	DefaultProjectName = "ProvarProject"
	DefaultBuildFile   = "build.xml"
	DefaultTestPlan    = "Regression"
	DefaultTestFolder  = "All"
)

var (
	// ErrInvalidBrowser is the sentinel for InvalidBrowserError.
	ErrInvalidBrowser = errors.New("invalid browser")
	// ErrInvalidCacheSetting is the sentinel for InvalidCacheSettingError.
	ErrInvalidCacheSetting = errors.New("invalid metadata cache setting")
	// ErrInvalidResultsPathSetting is the sentinel for InvalidResultsPathSettingError.
	ErrInvalidResultsPathSetting = errors.New("invalid results path setting")
)

type (
	// Browser is the browser the test run targets.
	Browser string

	// CacheSetting controls the Salesforce metadata cache.
	CacheSetting string

	// ResultsPathSetting controls what happens to an existing results folder.
	ResultsPathSetting string

	// InvalidBrowserError is returned for an unknown browser name.
	InvalidBrowserError struct {
		Value Browser
	}

	// InvalidCacheSettingError is returned for an unknown cache setting.
	InvalidCacheSettingError struct {
		Value CacheSetting
	}

	// InvalidResultsPathSettingError is returned for an unknown results setting.
	InvalidResultsPathSettingError struct {
		Value ResultsPathSetting
	}

	// Config is the configuration of one Provar Automation build step.
	// It is built once and never mutated by Perform.
	Config struct {
		// Installation names the registered Provar installation. Empty
		// runs the Ant front end found on PATH.
		Installation       string
		ProjectName        string
		BuildFile          string
		TestPlan           string
		TestFolder         string
		Environment        string
		Browser            Browser
		CacheSetting       CacheSetting
		ResultsPathSetting ResultsPathSetting
		LicensePath        string
		SecretsPassword    secret.Secret
	}
)

// Browsers lists the browsers in display order.
func Browsers() []Browser {
	return []Browser{BrowserChromeHeadless, BrowserChrome, BrowserEdge, BrowserEdgeLegacy, BrowserFirefox, BrowserSafari}
}

// CacheSettings lists the cache settings in display order.
func CacheSettings() []CacheSetting {
	return []CacheSetting{CacheReuse, CacheRefresh, CacheReload}
}

// ResultsPathSettings lists the results path settings in display order.
func ResultsPathSettings() []ResultsPathSetting {
	return []ResultsPathSetting{ResultsIncrement, ResultsReplace, ResultsFail}
}

func (e *InvalidBrowserError) Error() string {
	return fmt.Sprintf("invalid browser %q (valid: %s)", e.Value, joinValues(Browsers()))
}

func (e *InvalidBrowserError) Unwrap() error { return ErrInvalidBrowser }

func (e *InvalidCacheSettingError) Error() string {
	return fmt.Sprintf("invalid metadata cache setting %q (valid: %s)", e.Value, joinValues(CacheSettings()))
}

func (e *InvalidCacheSettingError) Unwrap() error { return ErrInvalidCacheSetting }

func (e *InvalidResultsPathSettingError) Error() string {
	return fmt.Sprintf("invalid results path setting %q (valid: %s)", e.Value, joinValues(ResultsPathSettings()))
}

func (e *InvalidResultsPathSettingError) Unwrap() error { return ErrInvalidResultsPathSetting }

func (b Browser) String() string { return string(b) }

// DisplayName returns the label shown in listings.
func (b Browser) DisplayName() string {
	switch b {
	case BrowserChromeHeadless:
		return "Chrome (Headless)"
	case BrowserEdgeLegacy:
		return "Edge (Legacy)"
	default:
		return string(b)
	}
}

// IsValid returns whether b is a known browser, and a list of validation
// errors if it is not.
func (b Browser) IsValid() (bool, []error) {
	for _, v := range Browsers() {
		if b == v {
			return true, nil
		}
	}
	return false, []error{&InvalidBrowserError{Value: b}}
}

func (c CacheSetting) String() string { return string(c) }

// IsValid returns whether c is a known cache setting, and a list of
// validation errors if it is not.
func (c CacheSetting) IsValid() (bool, []error) {
	for _, v := range CacheSettings() {
		if c == v {
			return true, nil
		}
	}
	return false, []error{&InvalidCacheSettingError{Value: c}}
}

func (r ResultsPathSetting) String() string { return string(r) }

// IsValid returns whether r is a known results path setting, and a list of
// validation errors if it is not.
func (r ResultsPathSetting) IsValid() (bool, []error) {
	for _, v := range ResultsPathSettings() {
		if r == v {
			return true, nil
		}
	}
	return false, []error{&InvalidResultsPathSettingError{Value: r}}
}

// ParseBrowser matches s case-insensitively and returns the canonical name.
// Empty selects the default.
func ParseBrowser(s string) (Browser, error) {
	if s == "" {
		return BrowserChromeHeadless, nil
	}
	if v, ok := match(s, Browsers()); ok {
		return v, nil
	}
	return "", &InvalidBrowserError{Value: Browser(s)}
}

// ParseCacheSetting matches s case-insensitively. Empty selects the default.
func ParseCacheSetting(s string) (CacheSetting, error) {
	if s == "" {
		return CacheReuse, nil
	}
	if v, ok := match(s, CacheSettings()); ok {
		return v, nil
	}
	return "", &InvalidCacheSettingError{Value: CacheSetting(s)}
}

// ParseResultsPathSetting matches s case-insensitively. Empty selects the default.
func ParseResultsPathSetting(s string) (ResultsPathSetting, error) {
	if s == "" {
		return ResultsIncrement, nil
	}
	if v, ok := match(s, ResultsPathSettings()); ok {
		return v, nil
	}
	return "", &InvalidResultsPathSettingError{Value: ResultsPathSetting(s)}
}

// DefaultConfig returns the configuration of a newly added step.
func DefaultConfig() Config {
	return Config{
		ProjectName:        DefaultProjectName,
		BuildFile:          DefaultBuildFile,
		TestPlan:           DefaultTestPlan,
		TestFolder:         DefaultTestFolder,
		Browser:            BrowserChromeHeadless,
		CacheSetting:       CacheReuse,
		ResultsPathSetting: ResultsIncrement,
	}
}

// IsValid checks the enumerated fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if ok, e := c.Browser.IsValid(); !ok {
		errs = append(errs, e...)
	}
	if ok, e := c.CacheSetting.IsValid(); !ok {
		errs = append(errs, e...)
	}
	if ok, e := c.ResultsPathSetting.IsValid(); !ok {
		errs = append(errs, e...)
	}
	return len(errs) == 0, errs
}

// Validate returns warnings for settings that are allowed but probably
// wrong. None of them stops a build.
func (c Config) Validate() []string {
	var warnings []string
	if strings.TrimSpace(c.BuildFile) == "" {
		warnings = append(warnings, "no build file given, "+DefaultBuildFile+" will be used")
	}
	if strings.TrimSpace(c.TestPlan) == "" {
		warnings = append(warnings, "no test plan given, no test plan will be selected")
	}
	if strings.TrimSpace(c.TestFolder) == "" {
		warnings = append(warnings, "no test folder given, no test folder will be selected")
	}
	if !c.SecretsPassword.IsSet() {
		warnings = append(warnings, "no secrets password given, encrypted projects will not be decrypted")
	}
	if strings.TrimSpace(c.ProjectName) == "" {
		warnings = append(warnings, "no project folder given, the build file is looked up directly under the workspace")
	} else if platform.IsWindowsReservedName(c.ProjectName) {
		warnings = append(warnings, fmt.Sprintf("project folder %q is a reserved name on Windows agents", c.ProjectName))
	}
	return warnings
}

func match[T ~string](s string, values []T) (T, bool) {
	for _, v := range values {
		if strings.EqualFold(s, string(v)) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func joinValues[T ~string](values []T) string {
	s := make([]string, len(values))
	for i, v := range values {
		s[i] = string(v)
	}
	return strings.Join(s, ", ")
}
