package webform

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; }
pre { background: #f4f4f4; padding: 1rem; white-space: pre-wrap; }
pre.failed { background: #fbeaea; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Upload a photo of a business card to extract the contact details as JSON. Model: <code id="model">{{.ModelName}}</code></p>
<form method="post" action="/" enctype="multipart/form-data">
<input type="file" name="image" accept="image/*">
<button type="submit">Extract</button>
</form>
{{if .Output}}<h2>Extracted Information</h2>
<pre id="output"{{if .Failed}} class="failed"{{end}}>{{.Output}}</pre>{{end}}
</body>
</html>
`
