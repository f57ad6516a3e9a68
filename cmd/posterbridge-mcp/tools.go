package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/posterbridge/api/handler"
	"github.com/use-agent/posterbridge/models"
)

func newServer(api *apiClient) *server.MCPServer {
	s := server.NewMCPServer(
		"posterbridge",
		handler.Version,
		server.WithToolCapabilities(false),
	)

	listItemsTool := mcp.NewTool("list_items",
		mcp.WithDescription("List the movies and series in the Jellyfin library. Call this before find_posters: item ids refer to the latest listing."),
		mcp.WithString("type",
			mcp.Description("Restrict to 'movies' or 'series' (default: both)"),
			mcp.Enum("movies", "series"),
		),
		mcp.WithString("sort",
			mcp.Description("Sort order: 'name' (default), 'year' or 'date_added'"),
			mcp.Enum("name", "year", "date_added"),
		),
	)
	s.AddTool(listItemsTool, handleListItems(api))

	findPostersTool := mcp.NewTool("find_posters",
		mcp.WithDescription("Search ThePosterDB for posters of a library item and return candidate image URLs."),
		mcp.WithString("item_id",
			mcp.Required(),
			mcp.Description("Item id from list_items"),
		),
		mcp.WithNumber("max",
			mcp.Description("Maximum number of candidates (server default when omitted)"),
		),
	)
	s.AddTool(findPostersTool, handleFindPosters(api))

	uploadPosterTool := mcp.NewTool("upload_poster",
		mcp.WithDescription("Download a poster URL and set it as the primary image of a Jellyfin item."),
		mcp.WithString("item_id",
			mcp.Required(),
			mcp.Description("Jellyfin item id"),
		),
		mcp.WithString("poster_url",
			mcp.Required(),
			mcp.Description("Poster URL returned by find_posters"),
		),
	)
	s.AddTool(uploadPosterTool, handleUploadPoster(api))

	autoPosterTool := mcp.NewTool("auto_poster",
		mcp.WithDescription("Apply the best-matching poster to every item matching a filter. Runs until the whole batch is done."),
		mcp.WithString("filter",
			mcp.Description("'no-poster' (default), 'all', 'movies' or 'series'"),
			mcp.Enum("no-poster", "all", "movies", "series"),
		),
	)
	s.AddTool(autoPosterTool, handleAutoPoster(api))

	return s
}

func handleListItems(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q := url.Values{}
		if t := request.GetString("type", ""); t != "" {
			q.Set("type", t)
		}
		if s := request.GetString("sort", ""); s != "" {
			q.Set("sort", s)
		}
		path := "/api/v1/items"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		var resp models.ItemsResponse
		if err := api.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%s: %d items\n\n", resp.ServerInfo.Name, resp.TotalCount)
		for _, it := range resp.Items {
			poster := "no poster"
			if it.HasPoster() {
				poster = "has poster"
			}
			fmt.Fprintf(&sb, "- %s | %s", it.ID, it.Title)
			if it.Year > 0 {
				fmt.Fprintf(&sb, " (%d)", it.Year)
			}
			fmt.Fprintf(&sb, " | %s | %s\n", it.Type, poster)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleFindPosters(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		itemID, err := request.RequireString("item_id")
		if err != nil {
			return mcp.NewToolResultError("item_id is required"), nil
		}
		path := "/api/v1/items/" + url.PathEscape(itemID) + "/posters"
		if n := request.GetInt("max", 0); n > 0 {
			path += fmt.Sprintf("?max=%d", n)
		}

		var resp models.PostersResponse
		if err := api.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(resp.Posters) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No posters found for %q.", resp.Query)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Query: %s\nFound %d posters:\n\n", resp.Query, len(resp.Posters))
		for _, p := range resp.Posters {
			fmt.Fprintf(&sb, "%d. %s\n", p.ID, p.URL)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleUploadPoster(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		itemID, err := request.RequireString("item_id")
		if err != nil {
			return mcp.NewToolResultError("item_id is required"), nil
		}
		posterURL, err := request.RequireString("poster_url")
		if err != nil {
			return mcp.NewToolResultError("poster_url is required"), nil
		}

		payload := models.DirectUploadRequest{ItemID: itemID, PosterURL: posterURL}
		var resp models.UploadResponse
		if err := api.call(ctx, http.MethodPost, "/api/v1/upload-poster", payload, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(resp.Message), nil
	}
}

func handleAutoPoster(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload := models.AutoPosterRequest{Filter: request.GetString("filter", "")}

		var report models.BatchReport
		if err := api.call(ctx, http.MethodPost, "/api/v1/batch/auto-poster", payload, &report); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%s\n\n", report.Message)
		for _, r := range report.Results {
			switch {
			case r.Success && r.Skipped:
				fmt.Fprintf(&sb, "= %s: already current\n", r.ItemTitle)
			case r.Success:
				fmt.Fprintf(&sb, "✓ %s: %s\n", r.ItemTitle, r.PosterURL)
			default:
				fmt.Fprintf(&sb, "✗ %s: %s\n", r.ItemTitle, r.Error)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
