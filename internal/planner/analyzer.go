package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// PageAnalysis is the interactive-element inventory of one rendered page.
type PageAnalysis struct {
	Title          string   `json:"title"`
	Buttons        []string `json:"buttons"`
	InputTypes     []string `json:"input_types"`
	GameContainers []string `json:"game_containers"`
	HasCanvas      bool     `json:"has_canvas"`
	ScriptCount    int      `json:"script_count"`
}

// Summary renders the analysis as prose for LLM prompts and knowledge
// records.
func (a PageAnalysis) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Page title: %s. ", a.Title)
	if len(a.Buttons) > 0 {
		fmt.Fprintf(&b, "Buttons: %s. ", strings.Join(a.Buttons, ", "))
	}
	if len(a.InputTypes) > 0 {
		fmt.Fprintf(&b, "Input fields: %s. ", strings.Join(a.InputTypes, ", "))
	}
	if len(a.GameContainers) > 0 {
		fmt.Fprintf(&b, "Game containers: %s. ", strings.Join(a.GameContainers, ", "))
	}
	if a.HasCanvas {
		b.WriteString("Uses a canvas element. ")
	}
	fmt.Fprintf(&b, "%d script tags.", a.ScriptCount)
	return b.String()
}

// Analyzer fetches the rendered page with a short-lived headless browser and
// inventories its interactive elements.
type Analyzer struct {
	headless bool
	logger   *zap.Logger
}

// NewAnalyzer creates a page analyzer.
func NewAnalyzer(headless bool, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{headless: headless, logger: logger}
}

// Analyze renders the target and returns its element inventory. The browser
// launched for the fetch is torn down before returning.
func (a *Analyzer) Analyze(ctx context.Context, targetURL string) (PageAnalysis, error) {
	src, err := a.fetchHTML(ctx, targetURL)
	if err != nil {
		return PageAnalysis{}, err
	}
	return AnalyzeHTML(src)
}

func (a *Analyzer) fetchHTML(ctx context.Context, targetURL string) (string, error) {
	controlURL, err := launcher.New().Headless(a.headless).Launch()
	if err != nil {
		return "", fmt.Errorf("launch chrome: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("connect to chrome: %w", err)
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{URL: targetURL})
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	page = page.Context(ctx)
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page load: %w", err)
	}
	return page.HTML()
}

// AnalyzeHTML inventories an HTML document. Split from the fetch so static
// markup can be analyzed directly.
func AnalyzeHTML(src string) (PageAnalysis, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return PageAnalysis{}, fmt.Errorf("parse html: %w", err)
	}

	var analysis PageAnalysis
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					analysis.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "button":
				analysis.Buttons = append(analysis.Buttons, nodeText(n))
			case "input":
				t := attr(n, "type")
				if t == "" {
					t = "text"
				}
				analysis.InputTypes = append(analysis.InputTypes, t)
			case "canvas":
				analysis.HasCanvas = true
			case "script":
				analysis.ScriptCount++
			case "div", "section", "main":
				marker := attr(n, "id") + " " + attr(n, "class")
				if strings.Contains(strings.ToLower(marker), "game") {
					name := attr(n, "id")
					if name == "" {
						name = attr(n, "class")
					}
					analysis.GameContainers = append(analysis.GameContainers, name)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return analysis, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText collects the trimmed text content beneath a node.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
