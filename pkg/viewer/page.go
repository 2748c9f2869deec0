package viewer

const indexHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>cube-action</title>
<style>
body { font-family: monospace; background: #111; color: #ddd; margin: 1em; }
#cubes { display: flex; gap: 1em; margin: 1em 0; }
.cube { width: 9em; padding: .5em; border: 1px solid #444; border-radius: 4px; }
.swatch { height: 3em; border-radius: 4px; margin-bottom: .5em; }
.error { color: #f66; }
#camera { max-width: 480px; border: 1px solid #444; }
#logs { height: 20em; overflow-y: auto; border: 1px solid #444; padding: .5em; }
</style>
</head>
<body>
<h1>cube-action <span id="state">idle</span></h1>
<div id="cubes"></div>
<img id="camera" alt="camera">
<h2>log</h2>
<div id="logs"></div>
<script>
const ws = path => new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + path);

ws("/ws/status").onmessage = ev => {
  const st = JSON.parse(ev.data);
  document.getElementById("state").textContent = st.state;
  const cubes = document.getElementById("cubes");
  cubes.innerHTML = "";
  for (const c of st.cubes) {
    const el = document.createElement("div");
    el.className = "cube";
    el.innerHTML = '<div class="swatch" style="background:' + (c.color || "#000") + '"></div>' +
      "cube " + c.cube_id + "<br>" + (c.behavior || "") + (c.running ? " (running)" : "") +
      (c.last_error ? '<br><span class="error">' + c.last_error + "</span>" : "");
    cubes.appendChild(el);
  }
};

ws("/ws/logs").onmessage = ev => {
  const e = JSON.parse(ev.data);
  const logs = document.getElementById("logs");
  const line = document.createElement("div");
  line.className = e.type;
  line.textContent = e.time + " " + e.message;
  logs.appendChild(line);
  logs.scrollTop = logs.scrollHeight;
};

const cam = ws("/ws/camera");
cam.binaryType = "blob";
cam.onmessage = ev => {
  const img = document.getElementById("camera");
  const old = img.src;
  img.src = URL.createObjectURL(ev.data);
  if (old) URL.revokeObjectURL(old);
};
</script>
</body>
</html>
`
