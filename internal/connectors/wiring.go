package connectors

import (
	"fmt"
	"time"

	"github.com/surfsense-core/knowledge-core/internal/connectors/genericpage"
	"github.com/surfsense-core/knowledge-core/internal/store"
)

// The factories below each bind one store.ConnectorType to a
// genericpage.Connector configured for that source's REST shape. They are
// registered against a Registry with RegisterDefaultFactories.

func requireString(cfg map[string]any, key string) (string, error) {
	v, _ := cfg[key].(string)
	if v == "" {
		return "", fmt.Errorf("missing required config field %q", key)
	}
	return v, nil
}

func extractMarkdownField(m map[string]any, titleKey, idKey, bodyKey string, extraMeta ...string) genericpage.Item {
	title, _ := m[titleKey].(string)
	id, _ := m[idKey].(string)
	body, _ := m[bodyKey].(string)
	meta := map[string]string{}
	for _, k := range extraMeta {
		if v, ok := m[k].(string); ok {
			meta[k] = v
		}
	}
	return genericpage.Item{Title: title, SourceID: id, BodyMarkdown: body, Metadata: meta}
}

func slackFactory(cfg map[string]any) (SourceCapability, error) {
	token, err := requireString(cfg, "bot_token")
	if err != nil {
		return nil, err
	}
	channel, _ := cfg["channel"].(string)
	fetcher := genericpage.NewRESTFetcher(genericpage.RESTConfig{
		URLTemplate: func(cursor Cursor, window Window) string {
			url := fmt.Sprintf("https://slack.com/api/conversations.history?channel=%s&oldest=%d", channel, window.Start.Unix())
			if cursor != "" {
				url += "&cursor=" + string(cursor)
			}
			return url
		},
		Headers:        map[string]string{"Authorization": "Bearer " + token},
		ItemsPath:      "messages",
		NextCursorPath: "response_metadata.next_cursor",
		Extract: func(raw map[string]any) genericpage.Item {
			item := extractMarkdownField(raw, "user", "ts", "text")
			item.Title = fmt.Sprintf("#%s window", channel)
			item.Metadata["channel"] = channel
			// A channel the bot was never invited to returns an "not_in_channel"
			// error at the HTTP level, not a partial message list, so no
			// per-item Skip is needed here; the window-level error path in
			// Registry.RunConnector handles that case as a per-item failure.
			return item
		},
	})
	return genericpage.New(fetcher, store.DocumentTypeSlack), nil
}

func notionFactory(cfg map[string]any) (SourceCapability, error) {
	token, err := requireString(cfg, "api_key")
	if err != nil {
		return nil, err
	}
	fetcher := genericpage.NewRESTFetcher(genericpage.RESTConfig{
		URLTemplate: func(cursor Cursor, window Window) string {
			url := "https://api.notion.com/v1/search"
			if cursor != "" {
				url += "?start_cursor=" + string(cursor)
			}
			return url
		},
		Headers:        map[string]string{"Authorization": "Bearer " + token, "Notion-Version": "2022-06-28"},
		ItemsPath:      "results",
		NextCursorPath: "next_cursor",
		Extract: func(raw map[string]any) genericpage.Item {
			return extractMarkdownField(raw, "title", "id", "plain_text")
		},
	})
	return genericpage.New(fetcher, store.DocumentTypeNotion), nil
}

func linearFactory(cfg map[string]any) (SourceCapability, error) {
	token, err := requireString(cfg, "api_key")
	if err != nil {
		return nil, err
	}
	fetcher := genericpage.NewRESTFetcher(genericpage.RESTConfig{
		URLTemplate: func(cursor Cursor, window Window) string {
			url := "https://api.linear.app/graphql?query=issues"
			if cursor != "" {
				url += "&after=" + string(cursor)
			}
			return url
		},
		Headers:        map[string]string{"Authorization": token},
		ItemsPath:      "data.issues.nodes",
		NextCursorPath: "data.issues.pageInfo.endCursor",
		Extract: func(raw map[string]any) genericpage.Item {
			return extractMarkdownField(raw, "title", "identifier", "description", "state")
		},
	})
	return genericpage.New(fetcher, store.DocumentTypeLinear), nil
}

func jiraFactory(cfg map[string]any) (SourceCapability, error) {
	token, err := requireString(cfg, "api_token")
	if err != nil {
		return nil, err
	}
	baseURL, err := requireString(cfg, "base_url")
	if err != nil {
		return nil, err
	}
	fetcher := genericpage.NewRESTFetcher(genericpage.RESTConfig{
		URLTemplate: func(cursor Cursor, window Window) string {
			startAt := "0"
			if cursor != "" {
				startAt = string(cursor)
			}
			return fmt.Sprintf("%s/rest/api/3/search?startAt=%s&jql=updated>=%s", baseURL, startAt, window.Start.Format("2006-01-02"))
		},
		Headers:        map[string]string{"Authorization": "Bearer " + token},
		ItemsPath:      "issues",
		NextCursorPath: "", // Jira paginates by numeric offset, tracked via ResumptionToken instead
		Extract: func(raw map[string]any) genericpage.Item {
			key, _ := raw["key"].(string)
			fields, _ := raw["fields"].(map[string]any)
			summary, _ := fields["summary"].(string)
			return genericpage.Item{Title: summary, SourceID: key, BodyMarkdown: summary, Metadata: map[string]string{"key": key}}
		},
	})
	return genericpage.New(fetcher, store.DocumentTypeJira), nil
}

func githubFactory(cfg map[string]any) (SourceCapability, error) {
	token, err := requireString(cfg, "access_token")
	if err != nil {
		return nil, err
	}
	repo, err := requireString(cfg, "repo")
	if err != nil {
		return nil, err
	}
	fetcher := genericpage.NewRESTFetcher(genericpage.RESTConfig{
		URLTemplate: func(cursor Cursor, window Window) string {
			page := "1"
			if cursor != "" {
				page = string(cursor)
			}
			return fmt.Sprintf("https://api.github.com/repos/%s/git/trees/main?recursive=1&page=%s", repo, page)
		},
		Headers:   map[string]string{"Authorization": "Bearer " + token, "Accept": "application/vnd.github+json"},
		ItemsPath: "tree",
		Extract: func(raw map[string]any) genericpage.Item {
			path, _ := raw["path"].(string)
			sha, _ := raw["sha"].(string)
			nodeType, _ := raw["type"].(string)
			if nodeType != "blob" {
				return genericpage.Item{Skip: true}
			}
			return genericpage.Item{Title: path, SourceID: sha, Metadata: map[string]string{"path": path, "repo": repo}}
		},
	})
	return genericpage.New(fetcher, store.DocumentTypeGithub), nil
}

func discordFactory(cfg map[string]any) (SourceCapability, error) {
	token, err := requireString(cfg, "bot_token")
	if err != nil {
		return nil, err
	}
	channel, err := requireString(cfg, "channel_id")
	if err != nil {
		return nil, err
	}
	fetcher := genericpage.NewRESTFetcher(genericpage.RESTConfig{
		URLTemplate: func(cursor Cursor, window Window) string {
			url := fmt.Sprintf("https://discord.com/api/v10/channels/%s/messages?limit=100", channel)
			if cursor != "" {
				url += "&before=" + string(cursor)
			}
			return url
		},
		Headers:   map[string]string{"Authorization": "Bot " + token},
		ItemsPath: "",
		Extract: func(raw map[string]any) genericpage.Item {
			return extractMarkdownField(raw, "author", "id", "content")
		},
	})
	return genericpage.New(fetcher, store.DocumentTypeDiscord), nil
}

func confluenceFactory(cfg map[string]any) (SourceCapability, error) {
	token, err := requireString(cfg, "api_token")
	if err != nil {
		return nil, err
	}
	baseURL, err := requireString(cfg, "base_url")
	if err != nil {
		return nil, err
	}
	fetcher := genericpage.NewRESTFetcher(genericpage.RESTConfig{
		URLTemplate: func(cursor Cursor, window Window) string {
			start := "0"
			if cursor != "" {
				start = string(cursor)
			}
			return fmt.Sprintf("%s/wiki/rest/api/content?start=%s&expand=body.storage", baseURL, start)
		},
		Headers:   map[string]string{"Authorization": "Bearer " + token},
		ItemsPath: "results",
		Extract: func(raw map[string]any) genericpage.Item {
			id, _ := raw["id"].(string)
			title, _ := raw["title"].(string)
			body, _ := raw["body"].(map[string]any)
			storage, _ := body["storage"].(map[string]any)
			value, _ := storage["value"].(string)
			return genericpage.Item{Title: title, SourceID: id, BodyMarkdown: value}
		},
	})
	return genericpage.New(fetcher, store.DocumentTypeConfluence), nil
}

func clickupFactory(cfg map[string]any) (SourceCapability, error) {
	token, err := requireString(cfg, "api_key")
	if err != nil {
		return nil, err
	}
	listID, err := requireString(cfg, "list_id")
	if err != nil {
		return nil, err
	}
	fetcher := genericpage.NewRESTFetcher(genericpage.RESTConfig{
		URLTemplate: func(cursor Cursor, window Window) string {
			page := "0"
			if cursor != "" {
				page = string(cursor)
			}
			return fmt.Sprintf("https://api.clickup.com/api/v2/list/%s/task?page=%s", listID, page)
		},
		Headers:   map[string]string{"Authorization": token},
		ItemsPath: "tasks",
		Extract: func(raw map[string]any) genericpage.Item {
			return extractMarkdownField(raw, "name", "id", "description")
		},
	})
	return genericpage.New(fetcher, store.DocumentTypeClickup), nil
}

func airtableFactory(cfg map[string]any) (SourceCapability, error) {
	token, err := requireString(cfg, "api_key")
	if err != nil {
		return nil, err
	}
	base, err := requireString(cfg, "base_id")
	if err != nil {
		return nil, err
	}
	table, err := requireString(cfg, "table")
	if err != nil {
		return nil, err
	}
	fetcher := genericpage.NewRESTFetcher(genericpage.RESTConfig{
		URLTemplate: func(cursor Cursor, window Window) string {
			url := fmt.Sprintf("https://api.airtable.com/v0/%s/%s", base, table)
			if cursor != "" {
				url += "?offset=" + string(cursor)
			}
			return url
		},
		Headers:        map[string]string{"Authorization": "Bearer " + token},
		ItemsPath:      "records",
		NextCursorPath: "offset",
		Extract: func(raw map[string]any) genericpage.Item {
			id, _ := raw["id"].(string)
			fields, _ := raw["fields"].(map[string]any)
			name, _ := fields["Name"].(string)
			return genericpage.Item{Title: name, SourceID: id, BodyMarkdown: fmt.Sprintf("%v", fields)}
		},
	})
	return genericpage.New(fetcher, store.DocumentTypeAirtable), nil
}

func lumaFactory(cfg map[string]any) (SourceCapability, error) {
	token, err := requireString(cfg, "api_key")
	if err != nil {
		return nil, err
	}
	fetcher := genericpage.NewRESTFetcher(genericpage.RESTConfig{
		URLTemplate: func(cursor Cursor, window Window) string {
			url := "https://api.lu.ma/public/v1/calendar/list-events"
			if cursor != "" {
				url += "?pagination_cursor=" + string(cursor)
			}
			return url
		},
		Headers:        map[string]string{"x-luma-api-key": token},
		ItemsPath:      "entries",
		NextCursorPath: "next_cursor",
		Extract: func(raw map[string]any) genericpage.Item {
			event, _ := raw["event"].(map[string]any)
			return extractMarkdownField(event, "name", "api_id", "description")
		},
	})
	return genericpage.New(fetcher, store.DocumentTypeLuma), nil
}

func circlebackFactory(cfg map[string]any) (SourceCapability, error) {
	token, err := requireString(cfg, "api_key")
	if err != nil {
		return nil, err
	}
	fetcher := genericpage.NewRESTFetcher(genericpage.RESTConfig{
		URLTemplate: func(cursor Cursor, window Window) string {
			url := "https://api.circleback.ai/v1/meetings"
			if cursor != "" {
				url += "?cursor=" + string(cursor)
			}
			return url
		},
		Headers:        map[string]string{"Authorization": "Bearer " + token},
		ItemsPath:      "meetings",
		NextCursorPath: "next_cursor",
		Extract: func(raw map[string]any) genericpage.Item {
			return extractMarkdownField(raw, "title", "id", "notes")
		},
	})
	return genericpage.New(fetcher, store.DocumentTypeCircleback), nil
}

func gmailFactory(cfg map[string]any) (SourceCapability, error) {
	token, err := requireString(cfg, "access_token")
	if err != nil {
		return nil, err
	}
	fetcher := genericpage.NewRESTFetcher(genericpage.RESTConfig{
		URLTemplate: func(cursor Cursor, window Window) string {
			q := fmt.Sprintf("after:%d", window.Start.Unix())
			url := "https://gmail.googleapis.com/gmail/v1/users/me/messages?q=" + q
			if cursor != "" {
				url += "&pageToken=" + string(cursor)
			}
			return url
		},
		Headers:        map[string]string{"Authorization": "Bearer " + token},
		ItemsPath:      "messages",
		NextCursorPath: "nextPageToken",
		Extract: func(raw map[string]any) genericpage.Item {
			id, _ := raw["id"].(string)
			snippet, _ := raw["snippet"].(string)
			return genericpage.Item{Title: snippet, SourceID: id, BodyMarkdown: snippet}
		},
	})
	return genericpage.New(fetcher, store.DocumentTypeGmail), nil
}

func gcalendarFactory(cfg map[string]any) (SourceCapability, error) {
	token, err := requireString(cfg, "access_token")
	if err != nil {
		return nil, err
	}
	fetcher := genericpage.NewRESTFetcher(genericpage.RESTConfig{
		URLTemplate: func(cursor Cursor, window Window) string {
			url := fmt.Sprintf("https://www.googleapis.com/calendar/v3/calendars/primary/events?timeMin=%s", window.Start.Format(time.RFC3339))
			if cursor != "" {
				url += "&pageToken=" + string(cursor)
			}
			return url
		},
		Headers:        map[string]string{"Authorization": "Bearer " + token},
		ItemsPath:      "items",
		NextCursorPath: "nextPageToken",
		Extract: func(raw map[string]any) genericpage.Item {
			return extractMarkdownField(raw, "summary", "id", "description")
		},
	})
	return genericpage.New(fetcher, store.DocumentTypeGoogleCalendar), nil
}

// RegisterDefaultFactories wires every REST-backed connector type this
// module ships into a Registry.
func RegisterDefaultFactories(r *Registry) {
	r.Register(store.ConnectorTypeSlack, slackFactory)
	r.Register(store.ConnectorTypeNotion, notionFactory)
	r.Register(store.ConnectorTypeLinear, linearFactory)
	r.Register(store.ConnectorTypeJira, jiraFactory)
	r.Register(store.ConnectorTypeGithub, githubFactory)
	r.Register(store.ConnectorTypeDiscord, discordFactory)
	r.Register(store.ConnectorTypeConfluence, confluenceFactory)
	r.Register(store.ConnectorTypeClickup, clickupFactory)
	r.Register(store.ConnectorTypeAirtable, airtableFactory)
	r.Register(store.ConnectorTypeLuma, lumaFactory)
	r.Register(store.ConnectorTypeCircleback, circlebackFactory)
	r.Register(store.ConnectorTypeGmail, gmailFactory)
	r.Register(store.ConnectorTypeGoogleCalendar, gcalendarFactory)
}
