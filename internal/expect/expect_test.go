package expect_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyan/velvetcheck/internal/chrome"
	"github.com/tomyan/velvetcheck/internal/chrome/launcher"
	"github.com/tomyan/velvetcheck/internal/expect"
	"github.com/tomyan/velvetcheck/internal/testutil"
)

var chromeInstance *launcher.Instance

func TestMain(m *testing.M) {
	testutil.MainWithChrome(m, &chromeInstance)
}

const delayedHTML = `<!doctype html>
<html><body>
	<h3 id="status">Authenticating...</h3>
	<input id="code" aria-label="Invite Code" value="abc">
	<button id="go" disabled>Enter</button>
	<p class="twice">Twice</p><p class="twice">Twice</p>
	<script>
		setTimeout(() => {
			document.getElementById('status').textContent = 'Access Granted';
			document.getElementById('go').disabled = false;
			document.getElementById('code').value = 'TESTCODE';
		}, 400);
	</script>
</body></html>`

func openPage(t *testing.T) (*chrome.Page, context.Context) {
	t.Helper()

	page := testutil.NewPage(t, chromeInstance)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	t.Cleanup(cancel)

	_, err := page.Goto(ctx, testutil.ServeHTML(t, delayedHTML))
	require.NoError(t, err)
	return page, ctx
}

func TestNew_DefaultTimeout(t *testing.T) {
	assert.Equal(t, expect.DefaultTimeout, expect.New(0).Timeout)
	assert.Equal(t, 2*time.Second, expect.New(2*time.Second).Timeout)
}

func TestError_Message(t *testing.T) {
	err := &expect.Error{
		Locator:   `getByText("Validating...")`,
		Assertion: "toBeVisible",
		Timeout:   5 * time.Second,
		Detail:    "element not found",
	}
	assert.Equal(t, `expect(getByText("Validating...")).toBeVisible: timeout 5s exceeded: element not found`, err.Error())
	assert.True(t, errors.Is(err, expect.ErrTimeout))

	wrapped := &expect.Error{Locator: "x", Assertion: "toBeEnabled", Err: chrome.ErrStrictMode}
	assert.True(t, errors.Is(wrapped, chrome.ErrStrictMode))
	assert.False(t, errors.Is(wrapped, expect.ErrTimeout))
}

func TestVisible_WaitsForText(t *testing.T) {
	page, ctx := openPage(t)
	e := expect.New(3 * time.Second)

	require.NoError(t, e.Visible(ctx, page.GetByText("Authenticating...")))
	require.NoError(t, e.Visible(ctx, page.GetByText("Access Granted")))
	require.NoError(t, e.Hidden(ctx, page.GetByText("Authenticating...")))
}

func TestVisible_TimesOut(t *testing.T) {
	page, ctx := openPage(t)
	e := expect.New(300 * time.Millisecond)

	start := time.Now()
	err := e.Visible(ctx, page.GetByText("Never shown"))
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)

	var ee *expect.Error
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "toBeVisible", ee.Assertion)
	assert.True(t, errors.Is(err, expect.ErrTimeout))
	assert.Contains(t, err.Error(), `expect(getByText("Never shown")).toBeVisible: timeout 300ms exceeded: element not found`)
}

func TestVisible_ContextDeadlineIsTimeout(t *testing.T) {
	page, ctx := openPage(t)
	e := expect.New(5 * time.Second)

	short, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()

	err := e.Visible(short, page.GetByText("Never shown"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, expect.ErrTimeout), "got %v", err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	var ee *expect.Error
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "toBeVisible", ee.Assertion)
}

func TestError_CanceledIsNotTimeout(t *testing.T) {
	err := &expect.Error{Locator: "x", Assertion: "toBeVisible", Err: context.Canceled}
	assert.False(t, errors.Is(err, expect.ErrTimeout))
	assert.True(t, errors.Is(err, context.Canceled))

	deadline := &expect.Error{Locator: "x", Assertion: "toBeVisible", Err: fmt.Errorf("evaluating: %w", context.DeadlineExceeded)}
	assert.True(t, errors.Is(deadline, expect.ErrTimeout))
}

func TestEnabledDisabled(t *testing.T) {
	page, ctx := openPage(t)
	e := expect.New(3 * time.Second)
	button := page.GetByRole("button", "Enter")

	require.NoError(t, e.Disabled(ctx, button))
	require.NoError(t, e.Enabled(ctx, button))

	err := expect.New(200*time.Millisecond).Disabled(ctx, button)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element is enabled")
}

func TestValue(t *testing.T) {
	page, ctx := openPage(t)
	e := expect.New(3 * time.Second)

	require.NoError(t, e.Value(ctx, page.GetByLabel("Invite Code"), "TESTCODE"))

	err := expect.New(200*time.Millisecond).Value(ctx, page.GetByLabel("Invite Code"), "OTHER")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `value is "TESTCODE"`)
}

func TestStrictModeFailsImmediately(t *testing.T) {
	page, ctx := openPage(t)
	e := expect.New(5 * time.Second)

	start := time.Now()
	err := e.Visible(ctx, page.GetByText("Twice"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, chrome.ErrStrictMode))
	assert.Less(t, time.Since(start), 2*time.Second)
}
