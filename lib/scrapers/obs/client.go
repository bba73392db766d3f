package obs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/mustafazeydani/NotUyarX/lib/captcha"
	"github.com/mustafazeydani/NotUyarX/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/obs")

const (
	loginPath       = "/oibs/ogrenci/login.aspx"
	captchaPath     = "/oibs/captcha/CaptchaImg.aspx"
	studentBasePath = "/oibs/ogrenci/"

	// a persistently failing solver would otherwise loop forever; the
	// portal hands out a fresh captcha on every attempt so five tries
	// is already generous
	maxCaptchaAttempts = 5
)

// Client owns the authenticated portal session. it is not safe for
// concurrent use: the cookie jar is shared mutable state, the caller
// serializes poll ticks around it.
type Client struct {
	Host   string
	Http   *resty.Client
	Solver captcha.Solver

	session Session
	jar     *cookiejar.Jar
}

type ClientOptions struct {
	Host   string
	Solver captcha.Solver
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.Host)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.Host)
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/obs/http")

	return &Client{
		Host:   opts.Host,
		Http:   client,
		Solver: opts.Solver,
		jar:    jar,
	}, nil
}

// RestoreSession loads a persisted session back into the cookie jar so
// a poll cycle can resume without logging in again.
func (c *Client) RestoreSession(session Session) error {
	baseUrl, err := url.Parse(c.Host)
	if err != nil {
		return err
	}
	cookies := make([]*http.Cookie, len(session.Cookies))
	for i, sc := range session.Cookies {
		cookies[i] = &http.Cookie{Name: sc.Name, Value: sc.Value, Path: "/"}
	}
	c.jar.SetCookies(baseUrl, cookies)
	c.session = session
	return nil
}

// Session returns the current session snapshot, suitable for
// persisting between poll cycles.
func (c *Client) Session() Session {
	return c.session
}

func (c *Client) sessionCookies() ([]SessionCookie, error) {
	baseUrl, err := url.Parse(c.Host)
	if err != nil {
		return nil, err
	}
	jarCookies := c.jar.Cookies(baseUrl)
	cookies := make([]SessionCookie, len(jarCookies))
	for i, jc := range jarCookies {
		cookies[i] = SessionCookie{Name: jc.Name, Value: jc.Value}
	}
	return cookies, nil
}

// Login runs the full login sequence, retrying the whole sequence on a
// captcha mismatch up to maxCaptchaAttempts before giving up with a
// LoginError.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	for attempt := 1; ; attempt++ {
		slog.DebugContext(ctx, "login attempt", "n", attempt)

		err := c.loginOnce(ctx, creds)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrCaptchaRejected) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "login failed")
			return err
		}
		if attempt >= maxCaptchaAttempts {
			err := &LoginError{PortalMessage: fmt.Sprintf(
				"captcha rejected %d times in a row", maxCaptchaAttempts,
			)}
			span.RecordError(err)
			span.SetStatus(codes.Error, "captcha attempts exhausted")
			return err
		}
	}
}

func (c *Client) loginOnce(ctx context.Context, creds Credentials) error {
	ctx, span := tracer.Start(ctx, "client:loginOnce")
	defer span.End()

	// a fresh jar per attempt: the captcha is bound to the cookies it
	// was served with
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	c.jar = jar
	c.Http.SetCookieJar(jar)

	_, err = c.Http.R().
		SetContext(ctx).
		Get(loginPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}

	captchaRes, err := c.Http.R().
		SetContext(ctx).
		Get(captchaPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch captcha image")
		return err
	}

	solution, err := c.Solver.Solve(ctx, captchaRes.Body())
	if err != nil {
		span.SetStatus(codes.Error, "captcha solver failed")
		return err
	}

	loginRes, err := c.Http.R().
		SetContext(ctx).
		SetHeader("Referer", c.Host+loginPath).
		SetFormData(map[string]string{
			"__EVENTTARGET": "btnLogin",
			"txtParamT01":   creds.StudentId,
			"txtParamT1":    creds.EncryptedPassword,
			"txtSecCode":    solution,
		}).
		Post(loginPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to post login form")
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(loginRes.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login response")
		return err
	}

	if panel := doc.Find("#lblSonuclar"); panel.Length() > 0 {
		text := strings.TrimSpace(panel.Text())
		if strings.Contains(text, captchaMismatchText) {
			span.SetStatus(codes.Error, "captcha rejected")
			return ErrCaptchaRejected
		}
		span.SetStatus(codes.Error, "portal reported login error")
		return &LoginError{PortalMessage: text}
	}

	notListPath, transcriptPath := ExtractMenuPaths(doc)
	if notListPath == "" {
		return fmt.Errorf("login response carries no grades-page link")
	}

	mainUrl := c.Host + loginPath
	if raw := loginRes.RawResponse; raw != nil && raw.Request != nil {
		mainUrl = raw.Request.URL.String()
	}

	cookies, err := c.sessionCookies()
	if err != nil {
		return err
	}
	c.session = Session{
		Cookies:        cookies,
		MainUrl:        mainUrl,
		NotListPath:    notListPath,
		TranscriptPath: transcriptPath,
		Active:         true,
	}
	span.SetAttributes(
		attribute.String("not_list_path", notListPath),
		attribute.String("transcript_path", transcriptPath),
	)
	return nil
}

func (c *Client) fetchStudentPage(ctx context.Context, path string) (*goquery.Document, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("Referer", c.session.MainUrl).
		Get(studentBasePath + path)
	if err != nil {
		return nil, err
	}
	if IsExpired(res.Header()) {
		c.session.Active = false
		return nil, ErrSessionExpired
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
}

// FetchCourses retrieves and extracts the grades page, transparently
// submitting the "update student info" interstitial once if the portal
// demands it.
func (c *Client) FetchCourses(ctx context.Context) ([]Course, error) {
	ctx, span := tracer.Start(ctx, "client:FetchCourses")
	defer span.End()

	doc, err := c.fetchStudentPage(ctx, c.session.NotListPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch grades page")
		return nil, err
	}

	if RequiresProfileUpdate(doc) {
		span.AddEvent("profile update interstitial")
		err := c.submitProfileForm(ctx, doc)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to submit profile form")
			return nil, err
		}
		doc, err = c.fetchStudentPage(ctx, c.session.NotListPath)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to refetch grades page")
			return nil, err
		}
	}

	return ExtractCourses(doc), nil
}

// FetchGPAInfo retrieves the transcript-scenario page, builds GPAInfo
// and resolves each course's credit units in place.
func (c *Client) FetchGPAInfo(ctx context.Context, courses []Course) (GPAInfo, error) {
	ctx, span := tracer.Start(ctx, "client:FetchGPAInfo")
	defer span.End()

	doc, err := c.fetchStudentPage(ctx, c.session.TranscriptPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch transcript page")
		return GPAInfo{}, err
	}

	if RequiresProfileUpdate(doc) {
		err := c.submitProfileForm(ctx, doc)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to submit profile form")
			return GPAInfo{}, err
		}
		doc, err = c.fetchStudentPage(ctx, c.session.TranscriptPath)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to refetch transcript page")
			return GPAInfo{}, err
		}
	}

	return ExtractGPAInfo(doc, courses), nil
}

// submitProfileForm posts the interstitial's own fields back so the
// portal releases the real page. not an error path, just a two-step
// fetch protocol.
func (c *Client) submitProfileForm(ctx context.Context, doc *goquery.Document) error {
	form := map[string]string{
		"__EVENTTARGET": "btnKaydet",
	}
	doc.Find("input[name]").Each(func(_ int, input *goquery.Selection) {
		name, _ := input.Attr("name")
		value, _ := input.Attr("value")
		if name != "" {
			form[name] = value
		}
	})

	_, err := c.Http.R().
		SetContext(ctx).
		SetHeader("Referer", c.session.MainUrl).
		SetFormData(form).
		Post(c.session.MainUrl)
	if err != nil {
		return fmt.Errorf("submit profile form: %w", err)
	}
	return nil
}
