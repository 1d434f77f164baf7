package server

// previewPage hosts the #cam surface the browser host binds streams to, and
// mirrors session events from /events.
const previewPage = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>camrec preview</title>
  <style>
    body { font-family: sans-serif; margin: 2em; }
    video { background: #111; width: 640px; height: 480px; }
    #log { font-family: monospace; white-space: pre; margin-top: 1em; }
  </style>
</head>
<body>
  <h1>camrec</h1>
  <video id="cam" playsinline></video>
  <div id="log"></div>
  <script>
    (function () {
      const log = document.getElementById('log');
      const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
      const ws = new WebSocket(proto + '//' + location.host + '/events');
      ws.onmessage = (m) => {
        const e = JSON.parse(m.data);
        let line = e.time + ' ' + e.type;
        if (e.state) line += ' [' + e.state + ']';
        if (e.error) line += ' ' + e.error;
        if (e.download) line += ' <a href="' + e.download + '">' + e.download + '</a>';
        log.innerHTML = line + '\n' + log.innerHTML;
      };
    })();
  </script>
</body>
</html>
`
