package fetch

import (
	"context"
	"fmt"
	"net/url"
)

// DefaultFacebookWidgetURL is the embeddable page-plugin endpoint. It
// renders a page's recent posts without authentication, which is the only
// way to read a foodbank's Facebook shopping list server-side.
const DefaultFacebookWidgetURL = "https://www.facebook.com/v16.0/plugins/page.php"

// FacebookFetcher reads a foodbank's shopping list out of the embedded
// page widget for its Facebook page.
type FacebookFetcher struct {
	cfg Config
}

// Fetch retrieves the widget markup for the foodbank's Facebook page.
func (f *FacebookFetcher) Fetch(ctx context.Context, src Source) (*Result, error) {
	endpoint := f.cfg.FacebookWidgetURL
	if endpoint == "" {
		endpoint = DefaultFacebookWidgetURL
	}
	widgetURL := fmt.Sprintf(
		"%s?adapt_container_width=true&app_id=224169065968597&container_width=538&height=1000&hide_cover=false&href=%s&lazy=true&locale=en_GB&sdk=joey&show_facepile=true&show_posts=true&small_header=false&width=",
		endpoint,
		url.QueryEscape("https://www.facebook.com/"+src.FacebookPage),
	)

	html, err := f.cfg.get(ctx, widgetURL)
	if err != nil {
		return nil, err
	}

	text, err := BodyText(html)
	if err != nil {
		text = html
	}
	return &Result{Text: text, HTML: html}, nil
}
