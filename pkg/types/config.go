package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// LogConfig controls the operator-facing log stream.
type LogConfig struct {
	// Level is a logrus level name: debug, info, warning, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// File is appended to in addition to stderr. Empty disables file output.
	File string `json:"file" yaml:"file" mapstructure:"file"`
}

// OutputFormat selects the Sink implementation.
type OutputFormat string

const (
	OutputCSV    OutputFormat = "csv"
	OutputSQLite OutputFormat = "sqlite"
)

// OutputConfig names where harvested records are persisted.
type OutputConfig struct {
	Format OutputFormat `json:"format" yaml:"format" mapstructure:"format"`
	Path   string       `json:"path" yaml:"path" mapstructure:"path"`
}

// CrawlConfig holds the paginated crawl parameters. It is read once at
// start and handed to the controller by value.
type CrawlConfig struct {
	// StartURL is the first listing page. Restarts navigate here again.
	StartURL string `json:"start_url" yaml:"start_url" mapstructure:"start_url"`

	// StartPage is the listing page number the crawl begins on (>= 1).
	StartPage int `json:"start_page" yaml:"start_page" mapstructure:"start_page"`

	// MaxPages caps the number of listing pages visited. 0 means unlimited.
	MaxPages int `json:"max_pages" yaml:"max_pages" mapstructure:"max_pages"`

	// RetryCeiling bounds reload-and-retry attempts for page loads, listing
	// extraction, and unconfirmed page advances.
	RetryCeiling int `json:"retry_ceiling" yaml:"retry_ceiling" mapstructure:"retry_ceiling"`

	// ConfirmTimeout bounds the wait for a next-page action to show a new
	// listing before the advance counts as failed.
	ConfirmTimeout time.Duration `json:"confirm_timeout" yaml:"confirm_timeout" mapstructure:"confirm_timeout"`

	// RestartInterval is the number of processed pages between browser
	// session restarts. 0 disables restarts.
	RestartInterval int `json:"restart_interval" yaml:"restart_interval" mapstructure:"restart_interval"`

	// DelayMin and DelayMax bound the randomized pause between item fetches
	// and between page advances.
	DelayMin time.Duration `json:"delay_min" yaml:"delay_min" mapstructure:"delay_min"`
	DelayMax time.Duration `json:"delay_max" yaml:"delay_max" mapstructure:"delay_max"`
}

// BrowserConfig configures the headless browser session.
type BrowserConfig struct {
	// Bin is the Chromium binary. Empty lets the launcher download one.
	Bin string `json:"bin" yaml:"bin" mapstructure:"bin"`

	Headless  bool   `json:"headless" yaml:"headless" mapstructure:"headless"`
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// PageTimeout bounds navigation plus the document ready wait.
	PageTimeout time.Duration `json:"page_timeout" yaml:"page_timeout" mapstructure:"page_timeout"`

	// ElementTimeout bounds waits for a selector to appear.
	ElementTimeout time.Duration `json:"element_timeout" yaml:"element_timeout" mapstructure:"element_timeout"`

	// BlockResources lists resource types (image, stylesheet, font, media)
	// the browser does not load.
	BlockResources []string `json:"block_resources" yaml:"block_resources" mapstructure:"block_resources"`
}

// IEEESelectors are the CSS selectors coupled to IEEE Xplore's markup.
type IEEESelectors struct {
	ResultItem     string `json:"result_item" yaml:"result_item" mapstructure:"result_item"`
	NextButton     string `json:"next_button" yaml:"next_button" mapstructure:"next_button"`
	ConsentButton  string `json:"consent_button" yaml:"consent_button" mapstructure:"consent_button"`
	DetailTitle    string `json:"detail_title" yaml:"detail_title" mapstructure:"detail_title"`
	DetailAbstract string `json:"detail_abstract" yaml:"detail_abstract" mapstructure:"detail_abstract"`
	DetailDate     string `json:"detail_date" yaml:"detail_date" mapstructure:"detail_date"`

	// Cite dialog controls, used when IEEEConfig.CiteDialog is set.
	// CiteButtonText is a regular expression matched against the text of
	// the CiteButton candidates.
	CiteButton         string `json:"cite_button" yaml:"cite_button" mapstructure:"cite_button"`
	CiteButtonText     string `json:"cite_button_text" yaml:"cite_button_text" mapstructure:"cite_button_text"`
	CiteAbstractToggle string `json:"cite_abstract_toggle" yaml:"cite_abstract_toggle" mapstructure:"cite_abstract_toggle"`
	CiteText           string `json:"cite_text" yaml:"cite_text" mapstructure:"cite_text"`
}

// IEEEConfig holds settings for the IEEE Xplore crawl.
type IEEEConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Query is the search text (queryText parameter).
	Query string `json:"query" yaml:"query" mapstructure:"query"`

	// RowsPerPage is passed as rowsPerPage when > 0.
	RowsPerPage int `json:"rows_per_page" yaml:"rows_per_page" mapstructure:"rows_per_page"`

	// CiteDialog harvests each document through its "Cite This" dialog with
	// the abstract included, producing PaperMetadata rows instead of Paper
	// rows.
	CiteDialog bool `json:"cite_dialog" yaml:"cite_dialog" mapstructure:"cite_dialog"`

	Selectors IEEESelectors `json:"selectors" yaml:"selectors" mapstructure:"selectors"`
	Output    OutputConfig  `json:"output" yaml:"output" mapstructure:"output"`
}

// ISCAConfig holds settings for the ISCA Archive citation scraper and PDF
// downloader.
type ISCAConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// URLsFile lists paper page URLs, one per line. Lines starting with #
	// are ignored.
	URLsFile string `json:"urls_file" yaml:"urls_file" mapstructure:"urls_file"`

	// CitationSelector locates the citation text on a paper page.
	CitationSelector string `json:"citation_selector" yaml:"citation_selector" mapstructure:"citation_selector"`

	// Output receives the URL,Citation rows.
	Output OutputConfig `json:"output" yaml:"output" mapstructure:"output"`

	// PDFDir receives downloaded PDFs.
	PDFDir string `json:"pdf_dir" yaml:"pdf_dir" mapstructure:"pdf_dir"`

	// Delay is the pause between consecutive paper pages.
	Delay time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`

	// RespectRobots skips pages the site's robots.txt disallows for
	// UserAgent.
	RespectRobots bool `json:"respect_robots" yaml:"respect_robots" mapstructure:"respect_robots"`
}

// ReportConfig names the report outputs and their headings.
type ReportConfig struct {
	AbstractsDoc     string `json:"abstracts_doc" yaml:"abstracts_doc" mapstructure:"abstracts_doc"`
	AbstractsHeading string `json:"abstracts_heading" yaml:"abstracts_heading" mapstructure:"abstracts_heading"`

	ReferencesDoc     string `json:"references_doc" yaml:"references_doc" mapstructure:"references_doc"`
	ReferencesHeading string `json:"references_heading" yaml:"references_heading" mapstructure:"references_heading"`

	// DuplicatesCSV receives the paper rows with a duplicate column added.
	DuplicatesCSV string `json:"duplicates_csv" yaml:"duplicates_csv" mapstructure:"duplicates_csv"`
}

// HarvestConfig groups every tool's configuration. It is the shape of the
// YAML config file.
type HarvestConfig struct {
	Log     LogConfig     `json:"log" yaml:"log" mapstructure:"log"`
	Crawl   CrawlConfig   `json:"crawl" yaml:"crawl" mapstructure:"crawl"`
	Browser BrowserConfig `json:"browser" yaml:"browser" mapstructure:"browser"`
	IEEE    IEEEConfig    `json:"ieee" yaml:"ieee" mapstructure:"ieee"`
	ISCA    ISCAConfig    `json:"isca" yaml:"isca" mapstructure:"isca"`
	Report  ReportConfig  `json:"report" yaml:"report" mapstructure:"report"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// DefaultHarvestConfig returns the configuration used when the config file
// omits a setting.
func DefaultHarvestConfig() HarvestConfig {
	return HarvestConfig{
		Log: LogConfig{
			Level: "info",
			File:  "crawler.log",
		},
		Crawl: CrawlConfig{
			StartPage:       1,
			RetryCeiling:    3,
			ConfirmTimeout:  20 * time.Second,
			RestartInterval: 20,
			DelayMin:        1 * time.Second,
			DelayMax:        3 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:       true,
			UserAgent:      defaultUserAgent,
			PageTimeout:    60 * time.Second,
			ElementTimeout: 20 * time.Second,
			BlockResources: []string{"image", "stylesheet", "font", "media"},
		},
		IEEE: IEEEConfig{
			BaseURL: "https://ieeexplore.ieee.org",
			Query:   "Dysarthria",
			Selectors: IEEESelectors{
				ResultItem:     "div.List-results-items",
				NextButton:     "button.stats-Pagination_arrow_next:not([disabled])",
				ConsentButton:  "#onetrust-accept-btn-handler",
				DetailTitle:    "h1.document-title",
				DetailAbstract: "div[xplmathjax]",
				DetailDate:     "div.doc-abstract-dateadded",

				CiteButton:         "button",
				CiteButtonText:     "Cite This",
				CiteAbstractToggle: `input[type="checkbox"]`,
				CiteText:           "div.text[xplmathjax]",
			},
			Output: OutputConfig{Format: OutputCSV, Path: "papers.csv"},
		},
		ISCA: ISCAConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   60 * time.Second,
				UserAgent: defaultUserAgent,
			},
			URLsFile:         "isca_urls.txt",
			CitationSelector: "#citation-content",
			Output:           OutputConfig{Format: OutputCSV, Path: "citations.csv"},
			PDFDir:           "paper_pdfs",
			Delay:            2 * time.Second,
			RespectRobots:    true,
		},
		Report: ReportConfig{
			AbstractsDoc:      "reports/IEEE_Abstracts.docx",
			AbstractsHeading:  "IEEE Xplore Abstracts",
			ReferencesDoc:     "reports/ISCA_References.docx",
			ReferencesHeading: "References",
			DuplicatesCSV:     "reports/papers_duplicates.csv",
		},
	}
}
