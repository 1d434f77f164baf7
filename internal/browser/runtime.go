package browser

// emitBinding is the Go function exposed to the page; recorder events reach
// Go through it
const emitBinding = "camrecEmit"

// bootstrapJS installs window.__camrec, the page-side half of the host.
// Recorder events are chained on a promise queue so dataavailable payloads
// (read asynchronously through FileReader) reach Go in emission order and
// the stop event always follows the final chunk.
const bootstrapJS = `() => {
  if (window.__camrec) return;

  const toBase64 = (blob) => new Promise((resolve, reject) => {
    const r = new FileReader();
    r.onload = () => resolve(String(r.result).split(',', 2)[1] || '');
    r.onerror = () => reject(r.error);
    r.readAsDataURL(blob);
  });

  window.__camrec = {
    streams: {},
    recorders: {},
    seq: 0,

    async getUserMedia(c) {
      try {
        const s = await navigator.mediaDevices.getUserMedia(c);
        this.streams[s.id] = s;
        return {id: s.id, tracks: s.getTracks().map(t => ({kind: t.kind, label: t.label}))};
      } catch (e) {
        return {error: (e && e.name) || 'Error', message: String((e && e.message) || e)};
      }
    },

    stopStream(id) {
      const s = this.streams[id];
      if (!s) return;
      s.getTracks().forEach(t => t.stop());
      delete this.streams[id];
    },

    newRecorder(streamId, mimeType) {
      const stream = this.streams[streamId];
      if (!stream) throw new Error('unknown stream ' + streamId);
      const rec = new MediaRecorder(stream, {mimeType});
      const id = 'rec-' + (++this.seq);

      let queue = Promise.resolve();
      const send = (build) => {
        queue = queue
          .then(build)
          .then(m => window['` + emitBinding + `'](Object.assign({recorder: id}, m)))
          .catch(e => console.error('camrec emit', e));
      };

      rec.ondataavailable = (e) => send(async () => ({
        type: 'dataavailable',
        data: e.data && e.data.size ? await toBase64(e.data) : '',
      }));
      rec.onerror = (e) => send(async () => ({type: 'error', message: String((e && (e.error || e.name)) || 'error')}));
      rec.onwarning = (e) => send(async () => ({type: 'warning', message: String((e && e.message) || 'warning')}));
      for (const t of ['start', 'pause', 'resume', 'stop']) {
        rec['on' + t] = () => send(async () => ({type: t}));
      }

      this.recorders[id] = rec;
      return id;
    },

    stopRecorder(id) {
      const rec = this.recorders[id];
      if (!rec || rec.state === 'inactive') return false;
      rec.stop();
      return true;
    },
  };
}`
