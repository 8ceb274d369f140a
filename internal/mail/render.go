package mail

import (
	"fmt"
	"html/template"
	"strings"

	"playlistwatch/internal/core"
)

// emailTemplate lays the update out as a header block for the playlist
// followed by one card per added track. Inline styles only, since mail
// clients ignore everything else.
const emailTemplate = `<html>
  <head>
    <meta charset="utf-8">
  </head>
  <body style="font-family: Helvetica, Arial, sans-serif; color: #373737;">
    <table style="border: 2px solid #1DB954; border-radius: 6px; padding: 12px; width: 100%; max-width: 640px;">
      <tr>
        {{if .Playlist.ImageURL}}<td style="width: 96px; vertical-align: top;">
          <img src="{{.Playlist.ImageURL}}" alt="playlist cover" width="96" height="96" style="border-radius: 4px;">
        </td>{{end}}
        <td style="vertical-align: top; padding-left: 12px;">
          <h2 style="margin: 0 0 4px 0;">{{if .Playlist.URL}}<a href="{{.Playlist.URL}}" style="color: #373737;">{{.Playlist.Name}}</a>{{else}}{{.Playlist.Name}}{{end}}</h2>
          {{if .Playlist.Description}}<p style="margin: 0; color: #6b6b6b;">{{.Playlist.Description}}</p>{{end}}
        </td>
      </tr>
    </table>
    <hr style="border: none; border-top: 1px solid #d9d9d9; max-width: 640px; margin: 16px 0;">
    <p style="max-width: 640px;">The following tracks were added:</p>
    {{range .Events}}
    <table style="border: 1px solid #d9d9d9; border-radius: 6px; padding: 8px; width: 100%; max-width: 640px; margin-bottom: 8px;">
      <tr>
        {{if .Track.AlbumArtURL}}<td style="width: 64px; vertical-align: top;">
          <img src="{{.Track.AlbumArtURL}}" alt="album art" width="64" height="64" style="border-radius: 4px;">
        </td>{{end}}
        <td style="vertical-align: top; padding-left: 12px;">
          <div>{{range $i, $a := .Track.Artists}}{{if $i}}, {{end}}{{if $a.URL}}<a href="{{$a.URL}}" style="color: #373737;">{{$a.Name}}</a>{{else}}{{$a.Name}}{{end}}{{end}}</div>
          <div style="font-weight: bold;">{{if .Track.URL}}<a href="{{.Track.URL}}" style="color: #373737;">{{.Track.Title}}</a>{{else}}{{.Track.Title}}{{end}}</div>
          {{if .Track.Album}}<div style="color: #6b6b6b;">{{if .Track.AlbumURL}}<a href="{{.Track.AlbumURL}}" style="color: #6b6b6b;">{{.Track.Album}}</a>{{else}}{{.Track.Album}}{{end}}</div>{{end}}
        </td>
      </tr>
    </table>
    {{end}}
  </body>
</html>`

// Renderer builds the subject and HTML body for a playlist update message.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() *Renderer {
	return &Renderer{
		tmpl: template.Must(template.New("update").Parse(emailTemplate)),
	}
}

type emailData struct {
	Playlist *core.PlaylistDetails
	Events   []core.AddedTrackEvent
}

// Render produces one consolidated message covering all events of a cycle.
func (r *Renderer) Render(playlist *core.PlaylistDetails, events []core.AddedTrackEvent) (string, string, error) {
	subject := fmt.Sprintf("Update to the playlist \"%s\"", playlist.Name)

	var body strings.Builder
	if err := r.tmpl.Execute(&body, emailData{Playlist: playlist, Events: events}); err != nil {
		return "", "", fmt.Errorf("failed to render update message: %w", err)
	}

	return subject, body.String(), nil
}
