package api

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const uiStyle = `
  <style>
    body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Cantarell,Noto Sans,sans-serif;max-width:880px;margin:32px auto;padding:0 16px;color:#0b0b0b;background:#fafafa}
    header{margin-bottom:24px}
    h1{font-size:22px;margin:0 0 8px}
    a{color:#0b63e5;text-decoration:none}
    a:hover{text-decoration:underline}
    .card{background:#fff;border:1px solid #e9e9e9;border-radius:10px;padding:16px;margin:12px 0}
    .row{display:flex;gap:12px;flex-wrap:wrap;align-items:center}
    .btn{display:inline-block;background:#0b63e5;color:#fff;border:none;padding:10px 14px;border-radius:8px;cursor:pointer}
    .btn.secondary{background:#444}
    input[type=text],input[type=number],select{padding:9px 10px;border:1px solid #dcdcdc;border-radius:8px}
    .muted{color:#666}
    .mono{font-family:ui-monospace,SFMono-Regular,Menlo,Monaco,Consolas,monospace}
    .grid{display:grid;grid-template-columns:1fr 1fr;gap:12px}
    .list{margin:0;padding-left:18px}
    .status{display:inline-block;padding:4px 8px;border-radius:6px;background:#efefef;font-size:12px}
    .bar{height:8px;background:#efefef;border-radius:4px;overflow:hidden;margin:6px 0}
    .bar span{display:block;height:100%;background:#0b63e5}
    footer{margin-top:24px;color:#666;font-size:12px}
  </style>`

var uiTemplates = template.Must(template.New("layout").Parse(`{{define "head"}}
<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  {{if .Refresh}}<meta http-equiv="refresh" content="2"/>{{end}}
  <title>pdfdesk</title>
` + uiStyle + `
</head>
<body>
  <header>
    <h1><a href="/">pdfdesk</a></h1>
    <div class="muted">Merge, split and convert PDF files</div>
  </header>
  {{if .Error}}
  <div class="card" style="border-color:#f2b8b5;background:#fff6f6">
    <strong style="color:#b3261e">Error:</strong> <span class="muted">{{.Error}}</span>
  </div>
  {{end}}
{{end}}

{{define "foot"}}
  <footer>
    <div>API base: <span class="mono">/api/v1</span> · <a href="/metrics">metrics</a></div>
  </footer>
</body>
</html>
{{end}}

{{define "home"}}
  {{template "head" .}}
  <div class="card">
    <div class="row">
      <h2 style="margin:0">Tasks</h2>
      <span class="status">{{.Active}} active</span>
      <form method="post" action="/ui/clear"><button class="btn secondary" type="submit">Clear finished</button></form>
    </div>
    {{if .Tasks}}
      <ul class="list">
      {{range .Tasks}}
        <li>
          <a href="/ui/tasks/{{.ID}}" class="mono">{{.Filename}}</a>
          <span class="status">{{.Type}}</span> <span class="status">{{.Status}}</span>
          <div class="bar"><span style="width:{{.Progress}}%"></span></div>
          <div class="muted">{{.Progress}}%{{if .Message}} · {{.Message}}{{end}}{{if .Error}} · error: {{.Error}}{{end}}</div>
        </li>
      {{end}}
      </ul>
    {{else}}
      <div class="muted">No tasks yet</div>
    {{end}}
  </div>

  <div class="card">
    <h2>Merge</h2>
    <form method="post" action="/ui/merge" enctype="multipart/form-data">
      <input type="file" name="files[]" accept=".pdf,application/pdf" multiple required />
      <div class="grid" style="margin-top:12px">
        <input type="text" name="output_name" placeholder="merged-document" />
        <input type="text" name="separators" placeholder="separators after, e.g. 0,2" />
      </div>
      <div class="row" style="margin-top:12px">
        <label><input type="checkbox" name="separate" /> one file per group</label>
        <button class="btn" type="submit">Merge</button>
      </div>
    </form>
    <div class="muted">POST /api/v1/merge</div>
  </div>

  <div class="card">
    <h2>Split</h2>
    <form method="post" action="/ui/split" enctype="multipart/form-data">
      <input type="file" name="file" accept=".pdf,application/pdf" required />
      <div class="grid" style="margin-top:12px">
        <input type="text" name="split_points" placeholder="split before pages, e.g. 4,8" />
        <input type="text" name="base_name" placeholder="base name" />
      </div>
      <div style="margin-top:12px"><button class="btn" type="submit">Split</button></div>
    </form>
    <div class="muted">POST /api/v1/split</div>
  </div>

  <div class="card">
    <h2>PDF to images</h2>
    <form method="post" action="/ui/render" enctype="multipart/form-data">
      <input type="file" name="file" accept=".pdf,application/pdf" required />
      <div class="row" style="margin-top:12px">
        <input type="number" name="start_page" min="1" placeholder="from" />
        <input type="number" name="end_page" min="1" placeholder="to" />
        <select name="quality">
          <option value="medium">medium</option>
          <option value="high">high</option>
          <option value="ultra">ultra</option>
        </select>
        <select name="format">
          <option value="png">png</option>
          <option value="jpg">jpg</option>
        </select>
        <label><input type="checkbox" name="create_folder" /> zip folder</label>
        <button class="btn" type="submit">Convert</button>
      </div>
    </form>
    <div class="muted">POST /api/v1/render</div>
  </div>

  <div class="card">
    <h2>Open task</h2>
    <form method="get" action="/ui/tasks">
      <div class="row">
        <input type="text" name="id" placeholder="Task ID" required />
        <button class="btn" type="submit">Open</button>
      </div>
    </form>
  </div>
  {{template "foot" .}}
{{end}}

{{define "task"}}
  {{template "head" .}}
  <div class="card">
    <h2>Task <span class="mono">{{.Task.ID}}</span></h2>
    <div>File: <strong>{{.Task.Filename}}</strong> <span class="status">{{.Task.Type}}</span></div>
    <div>Status: <span class="status">{{.Task.Status}}</span></div>
    <div class="bar"><span style="width:{{.Task.Progress}}%"></span></div>
    <div class="muted">{{.Task.Progress}}%{{if .Task.CurrentStep}} · {{.Task.CurrentStep}}{{end}}{{if .Task.Message}} · {{.Task.Message}}{{end}}</div>
    {{if .Task.Error}}<div style="color:#b3261e">{{.Task.Error}}</div>{{end}}
    <div class="muted">Started at: {{.Task.StartTime}}</div>
    {{if .Task.Status.IsActive}}
    <form method="post" action="/ui/tasks/{{.Task.ID}}/cancel" style="margin-top:12px">
      <button class="btn secondary" type="submit">Cancel</button>
    </form>
    {{end}}
  </div>

  <div class="card">
    <h3>Outputs</h3>
    {{if .Task.Result}}
      <ul class="list">
      {{range .Task.Result}}
        <li><a class="mono" href="/api/v1/outputs/{{$.Task.ID}}/{{.}}">{{.}}</a></li>
      {{end}}
      </ul>
    {{else}}
      <div class="muted">Nothing delivered yet</div>
    {{end}}
    <div class="muted">Finished tasks disappear from the board after a few seconds; outputs stay under GET /api/v1/outputs/{{.Task.ID}}</div>
  </div>
  {{template "foot" .}}
{{end}}
`))

// RegisterUIRoutes registers minimal HTML UI without JS
func (a *API) RegisterUIRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(uiTemplates)
	router.GET("/", a.UIHome)
	router.GET("/ui/tasks", a.UIOpenExisting)
	router.GET("/ui/tasks/:id", a.UITask)
	router.POST("/ui/tasks/:id/cancel", a.UICancel)
	router.POST("/ui/clear", a.UIClear)
	router.POST("/ui/merge", a.UISubmit(a.submitMerge))
	router.POST("/ui/split", a.UISubmit(a.submitSplit))
	router.POST("/ui/render", a.UISubmit(a.submitRender))
}

func (a *API) homeData(errMsg string) gin.H {
	reg := a.svc.Registry()
	active := reg.ActiveCount()
	return gin.H{
		"Tasks":   reg.Tasks(),
		"Active":  active,
		"Refresh": active > 0,
		"Error":   errMsg,
	}
}

// UIHome renders the task board
func (a *API) UIHome(c *gin.Context) { c.HTML(http.StatusOK, "home", a.homeData("")) }

// UIOpenExisting redirects to the task page by id
func (a *API) UIOpenExisting(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.Redirect(http.StatusFound, "/ui/tasks/"+id)
}

// UITask renders a task page
func (a *API) UITask(c *gin.Context) {
	id := c.Param("id")
	if t, ok := a.svc.Registry().GetTaskByID(id); ok {
		c.HTML(http.StatusOK, "task", gin.H{"Task": t, "Refresh": t.Status.IsActive()})
		return
	}
	c.HTML(http.StatusNotFound, "home", a.homeData("task not found"))
}

func (a *API) UICancel(c *gin.Context) {
	id := c.Param("id")
	if err := a.svc.Registry().CancelTask(id); err != nil {
		c.HTML(http.StatusBadRequest, "home", a.homeData(err.Error()))
		return
	}
	c.Redirect(http.StatusFound, "/ui/tasks/"+id)
}

func (a *API) UIClear(c *gin.Context) {
	a.svc.Registry().ClearCompleted()
	c.Redirect(http.StatusFound, "/")
}

// UISubmit runs a form submission and redirects to the new task page
func (a *API) UISubmit(submit func(*gin.Context) (submitResponse, *requestError)) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := submit(c)
		if err != nil {
			msg := err.msg
			if len(err.failed) > 0 {
				msg += ": " + strings.Join(err.failed, "; ")
			}
			c.HTML(err.status, "home", a.homeData(msg))
			return
		}
		c.Redirect(http.StatusFound, "/ui/tasks/"+resp.TaskID)
	}
}
