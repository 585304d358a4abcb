package schoolapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
)

// Config configures the school-management API adapter.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// Client fetches absences from the school-management system and reshapes
// them into the spreadsheet row shape.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client. When client credentials are configured every
// request carries an OAuth2 bearer token fetched from TokenURL.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.ClientID != "" && cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		httpClient = cc.Client(context.Background())
		httpClient.Timeout = timeout
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}
}

// Absence is one entry as delivered by the school API.
type Absence struct {
	StudentLastName  string `json:"studentLastName"`
	StudentFirstName string `json:"studentFirstName"`
	ClassName        string `json:"className"`
	StartDate        string `json:"startDate"`
	StartTime        string `json:"startTime"`
	EndTime          string `json:"endTime"`
	Reason           string `json:"reason"`
	Text             string `json:"text"`
	ExcuseStatus     string `json:"excuseStatus"`
}

type absencesResponse struct {
	Data []Absence `json:"data"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("school API error [%d]: %s", e.StatusCode, e.Message)
}

// FetchAbsences loads the absences of one class in [start, end]. Every failure
// wraps absence.ErrRemoteSourceUnavailable.
func (c *Client) FetchAbsences(ctx context.Context, start, end time.Time, className string) ([]absence.RawRow, error) {
	query := url.Values{}
	query.Set("startDate", start.Format("2006-01-02"))
	query.Set("endDate", end.Format("2006-01-02"))
	query.Set("className", className)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/absences?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", absence.ErrRemoteSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", absence.ErrRemoteSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		return nil, fmt.Errorf("%w: %v", absence.ErrRemoteSourceUnavailable, apiErr)
	}

	var payload absencesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: invalid response body: %v", absence.ErrRemoteSourceUnavailable, err)
	}

	rows := make([]absence.RawRow, 0, len(payload.Data))
	for _, a := range payload.Data {
		rows = append(rows, ToRawRow(a))
	}
	return rows, nil
}

// ToRawRow reshapes an API absence into the spreadsheet row shape.
// ISO dates become DD.MM.YYYY; anything unparseable is passed through and
// left for the normalizer to reject.
func ToRawRow(a Absence) absence.RawRow {
	date := strings.TrimSpace(a.StartDate)
	if len(date) >= 10 {
		if t, err := time.Parse("2006-01-02", date[:10]); err == nil {
			date = t.Format("02.01.2006")
		}
	}

	return absence.RawRow{
		absence.HeaderLastName:   a.StudentLastName,
		absence.HeaderFirstName:  a.StudentFirstName,
		absence.HeaderStartDate:  date,
		absence.HeaderClass:      a.ClassName,
		absence.HeaderReason:     a.Reason,
		absence.HeaderStatus:     string(MapStatus(a.ExcuseStatus)),
		absence.HeaderReasonText: a.Text,
		absence.HeaderStartTime:  a.StartTime,
		absence.HeaderEndTime:    a.EndTime,
	}
}

// MapStatus translates the external excuse vocabulary. PENDING and anything
// unknown become an empty status, which the classifier treats as not yet decided.
func MapStatus(status string) absence.RawStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "EXCUSED":
		return absence.StatusExcused
	case "UNEXCUSED":
		return absence.StatusUnexcused
	default:
		return absence.StatusEmpty
	}
}
