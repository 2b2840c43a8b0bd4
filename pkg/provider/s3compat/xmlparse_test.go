package s3compat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/s3compat/pkg/provider"
)

const versionListingXML = `<?xml version="1.0" encoding="UTF-8"?>
<ListVersionsResult xmlns="http://s3.amazonaws.com/doc/2006-03-01">
    <Name>bucket</Name>
    <Prefix>my</Prefix>
    <KeyMarker/>
    <VersionIdMarker/>
    <MaxKeys>5</MaxKeys>
    <IsTruncated>false</IsTruncated>
    <Version>
        <Key>my-image.jpg</Key>
        <VersionId>3/L4kqtJl40Nr8X8gdRQBpUMLUo</VersionId>
        <IsLatest>true</IsLatest>
        <LastModified>2009-10-12T17:50:30.000Z</LastModified>
        <ETag>&quot;fba9dede5f27731c9771645a39863328&quot;</ETag>
        <Size>434234</Size>
        <StorageClass>STANDARD</StorageClass>
        <Owner>
            <ID>75aa57f09aa0c8caeab4f8c24e99d10f8e7faeebf76c078efc7c6caea54ba06a</ID>
            <DisplayName>mtd@amazon.com</DisplayName>
        </Owner>
    </Version>
    <DeleteMarker>
        <Key>my-image.jpg</Key>
        <VersionId>03jpff543dhffds434rfdsFDN943fdsFkdmqnh892</VersionId>
        <IsLatest>false</IsLatest>
        <LastModified>2009-10-11T17:50:30.000Z</LastModified>
    </DeleteMarker>
    <Version>
        <Key>my-image.jpg</Key>
        <VersionId>QUpfdndhfd8438MNFDN93jdnJFkdmqnh893</VersionId>
        <IsLatest>false</IsLatest>
        <LastModified>2009-10-10T17:50:30.000Z</LastModified>
        <ETag>&quot;9b2cf535f27731c974343645a3985328&quot;</ETag>
        <Size>166434</Size>
        <StorageClass>STANDARD</StorageClass>
    </Version>
    <Version>
        <Key>my-image.jpg</Key>
        <VersionId>UIORUnfndfhnw89493jJFJ</VersionId>
        <IsLatest>FALSE</IsLatest>
        <LastModified>2009-10-11T12:50:30.000Z</LastModified>
        <ETag>&quot;772cf535f27731c974343645a3985328&quot;</ETag>
        <Size>64</Size>
        <StorageClass>STANDARD</StorageClass>
    </Version>
</ListVersionsResult>`

const bucketListingXML = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
    <Name>bucket</Name>
    <Prefix>photos/</Prefix>
    <Marker/>
    <MaxKeys>1000</MaxKeys>
    <Delimiter>/</Delimiter>
    <IsTruncated>true</IsTruncated>
    <NextMarker>photos/2007/</NextMarker>
    <KeyCount>3</KeyCount>
    <Contents>
        <Key>photos/</Key>
        <LastModified>2009-10-12T17:50:30.000Z</LastModified>
        <ETag>&quot;d41d8cd98f00b204e9800998ecf8427e&quot;</ETag>
        <Size>0</Size>
        <StorageClass>STANDARD</StorageClass>
    </Contents>
    <Contents>
        <Key>photos/my-image.jpg</Key>
        <LastModified>2009-10-12T17:50:30.000Z</LastModified>
        <ETag>&quot;fba9dede5f27731c9771645a39863328&quot;</ETag>
        <Size>434234</Size>
        <StorageClass>STANDARD</StorageClass>
        <Owner>
            <ID>75aa57f09aa0c8caeab4f8c24e99d10f8e7faeebf76c078efc7c6caea54ba06a</ID>
            <DisplayName>mtd@amazon.com</DisplayName>
        </Owner>
    </Contents>
    <CommonPrefixes>
        <Prefix>photos/2006/</Prefix>
    </CommonPrefixes>
    <CommonPrefixes>
        <Prefix>photos/2007/</Prefix>
    </CommonPrefixes>
</ListBucketResult>`

func TestParseBucketListing(t *testing.T) {
	l, err := ParseBucketListing([]byte(bucketListingXML))
	require.NoError(t, err)

	assert.Equal(t, KindBucketListing, l.Kind())
	assert.Equal(t, "bucket", l.Name)
	assert.Equal(t, "photos/", l.Prefix)
	assert.Equal(t, "/", l.Delimiter)
	assert.Equal(t, 1000, l.MaxKeys)
	assert.True(t, l.IsTruncated)
	assert.Equal(t, "photos/2007/", l.NextMarker)
	assert.False(t, l.Empty())

	require.Len(t, l.Contents, 2)
	assert.Equal(t, "photos/", l.Contents[0].Key)
	assert.Equal(t, int64(0), l.Contents[0].Size)
	assert.Nil(t, l.Contents[0].Owner)

	img := l.Contents[1]
	assert.Equal(t, "photos/my-image.jpg", img.Key)
	assert.Equal(t, int64(434234), img.Size)
	assert.Equal(t, `"fba9dede5f27731c9771645a39863328"`, img.ETag)
	assert.Equal(t, "2009-10-12T17:50:30.000Z", img.LastModified)
	assert.Equal(t, "STANDARD", img.StorageClass)
	require.NotNil(t, img.Owner)
	assert.Equal(t, "mtd@amazon.com", img.Owner.DisplayName)

	assert.Equal(t, []string{"photos/2006/", "photos/2007/"}, l.CommonPrefixes)
}

func TestParseBucketListing_V2(t *testing.T) {
	body := `<ListBucketResult>
        <Name>bucket</Name><Prefix></Prefix><KeyCount>1</KeyCount><MaxKeys>1</MaxKeys>
        <IsTruncated>true</IsTruncated>
        <ContinuationToken>abc</ContinuationToken>
        <NextContinuationToken>1ueGcxLPRx1Tr/XYExHnhbYLgveDs2J/wm36Hy4vbOwM=</NextContinuationToken>
        <Contents><Key>a.txt</Key><Size>3</Size></Contents>
    </ListBucketResult>`

	l, err := ParseBucketListing([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "abc", l.ContinuationToken)
	assert.Equal(t, "1ueGcxLPRx1Tr/XYExHnhbYLgveDs2J/wm36Hy4vbOwM=", l.NextContinuationToken)
	require.Len(t, l.Contents, 1)
	assert.Equal(t, "a.txt", l.Contents[0].Key)
	assert.Empty(t, l.CommonPrefixes)
}

func TestParseVersionListing(t *testing.T) {
	l, err := ParseVersionListing([]byte(versionListingXML))
	require.NoError(t, err)

	assert.Equal(t, "my", l.Prefix)
	assert.Equal(t, 5, l.MaxKeys)
	assert.False(t, l.IsTruncated)

	require.Len(t, l.Entries, 4, "versions and delete markers are kept in document order")
	assert.True(t, l.Entries[1].DeleteMarker)
	assert.Equal(t, "03jpff543dhffds434rfdsFDN943fdsFkdmqnh892", l.Entries[1].VersionID)

	versions := l.Versions()
	require.Len(t, versions, 3)

	latest := 0
	for _, v := range versions {
		assert.Equal(t, "my-image.jpg", v.Key)
		assert.False(t, v.DeleteMarker)
		if v.IsLatest {
			latest++
		}
	}
	assert.Equal(t, 1, latest, "exactly one version is latest")

	assert.Equal(t, "3/L4kqtJl40Nr8X8gdRQBpUMLUo", versions[0].VersionID)
	assert.True(t, versions[0].IsLatest)
	assert.Equal(t, int64(434234), versions[0].Size)
	require.NotNil(t, versions[0].Owner)
	assert.Equal(t, "75aa57f09aa0c8caeab4f8c24e99d10f8e7faeebf76c078efc7c6caea54ba06a", versions[0].Owner.ID)

	assert.Equal(t, "UIORUnfndfhnw89493jJFJ", versions[2].VersionID)
	assert.False(t, versions[2].IsLatest)
	assert.Equal(t, int64(64), versions[2].Size)
	assert.Nil(t, versions[2].Owner)
}

func TestParsePartListing(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<ListPartsResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Bucket>example-bucket</Bucket>
  <Key>example-object</Key>
  <UploadId>XXBsb2FkIElEIGZvciBlbHZpbmcncyVcdS1tb3ZpZS5tMnRzEEEwbG9hZA</UploadId>
  <StorageClass>STANDARD</StorageClass>
  <PartNumberMarker>1</PartNumberMarker>
  <NextPartNumberMarker>3</NextPartNumberMarker>
  <MaxParts>2</MaxParts>
  <IsTruncated>true</IsTruncated>
  <Part>
    <PartNumber>2</PartNumber>
    <LastModified>2010-11-10T20:48:34.000Z</LastModified>
    <ETag>"7778aef83f66abc1fa1e8477f296d394"</ETag>
    <Size>10485760</Size>
  </Part>
  <Part>
    <PartNumber>3</PartNumber>
    <LastModified>2010-11-10T20:48:33.000Z</LastModified>
    <ETag>"aaaa18db4cc2f85cedef654fccc4a4x8"</ETag>
    <Size>10485760</Size>
  </Part>
</ListPartsResult>`

	l, err := ParsePartListing([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "example-object", l.Key)
	assert.Equal(t, "XXBsb2FkIElEIGZvciBlbHZpbmcncyVcdS1tb3ZpZS5tMnRzEEEwbG9hZA", l.UploadID)
	assert.Equal(t, 1, l.PartNumberMarker)
	assert.Equal(t, 3, l.NextPartNumberMarker)
	assert.Equal(t, 2, l.MaxParts)
	assert.True(t, l.IsTruncated)
	require.Len(t, l.Parts, 2)
	assert.Equal(t, 2, l.Parts[0].PartNumber)
	assert.Equal(t, int64(10485760), l.Parts[0].Size)
	assert.Equal(t, 3, l.Parts[1].PartNumber)
}

func TestParse_Documents(t *testing.T) {
	tests := []struct {
		name  string
		kind  ResponseKind
		body  string
		check func(t *testing.T, r Response)
	}{
		{
			name: "copy object result",
			kind: KindCopyResult,
			body: `<CopyObjectResult><LastModified>2009-10-28T22:32:00</LastModified><ETag>"9b2cf535f27731c974343645a3985328"</ETag></CopyObjectResult>`,
			check: func(t *testing.T, r Response) {
				c := r.(*CopyResult)
				assert.Equal(t, `"9b2cf535f27731c974343645a3985328"`, c.ETag)
				assert.Equal(t, "2009-10-28T22:32:00", c.LastModified)
			},
		},
		{
			name: "copy part result",
			kind: KindCopyResult,
			body: `<CopyPartResult><ETag>"abc"</ETag></CopyPartResult>`,
			check: func(t *testing.T, r Response) {
				assert.Equal(t, `"abc"`, r.(*CopyResult).ETag)
			},
		},
		{
			name: "error",
			kind: KindError,
			body: `<Error><Code>NoSuchKey</Code><Message>The resource you requested does not exist</Message><Resource>/mybucket/myfoto.jpg</Resource><RequestId>4442587FB7D0A2F9</RequestId><HostId>host</HostId></Error>`,
			check: func(t *testing.T, r Response) {
				e := r.(*ErrorResponse)
				assert.Equal(t, "NoSuchKey", e.Code)
				assert.Equal(t, "The resource you requested does not exist", e.Message)
				assert.Equal(t, "/mybucket/myfoto.jpg", e.Resource)
				assert.Equal(t, "4442587FB7D0A2F9", e.RequestID)
				assert.Equal(t, "host", e.HostID)
			},
		},
		{
			name: "initiate multipart",
			kind: KindInitiateMultipart,
			body: `<InitiateMultipartUploadResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Bucket>example-bucket</Bucket><Key>example-object</Key><UploadId> VXBsb2FkIElE </UploadId></InitiateMultipartUploadResult>`,
			check: func(t *testing.T, r Response) {
				i := r.(*InitiateResult)
				assert.Equal(t, "example-object", i.Key)
				assert.Equal(t, "VXBsb2FkIElE", i.UploadID)
			},
		},
		{
			name: "complete multipart",
			kind: KindCompleteMultipart,
			body: `<CompleteMultipartUploadResult><Location>http://example.org/b/k</Location><Bucket>b</Bucket><Key>k</Key><ETag>"3858f62230ac3c915f300c664312c11f-9"</ETag></CompleteMultipartUploadResult>`,
			check: func(t *testing.T, r Response) {
				c := r.(*CompleteResult)
				assert.Equal(t, "k", c.Key)
				assert.Equal(t, `"3858f62230ac3c915f300c664312c11f-9"`, c.ETag)
			},
		},
		{
			name: "delete result",
			kind: KindDeleteResult,
			body: `<DeleteResult><Deleted><Key>a</Key></Deleted><Error><Key>b</Key><Code>AccessDenied</Code><Message>Access Denied</Message></Error></DeleteResult>`,
			check: func(t *testing.T, r Response) {
				d := r.(*DeleteResult)
				assert.Equal(t, []string{"a"}, d.Deleted)
				require.Len(t, d.Errors, 1)
				assert.Equal(t, DeleteFailure{Key: "b", Code: "AccessDenied", Message: "Access Denied"}, d.Errors[0])
			},
		},
		{
			name: "unknown elements are ignored",
			kind: KindBucketListing,
			body: `<ListBucketResult><Name>b</Name><EncodingType>url</EncodingType><Contents><Key>k</Key><Size>1</Size><ChecksumAlgorithm>CRC32</ChecksumAlgorithm></Contents></ListBucketResult>`,
			check: func(t *testing.T, r Response) {
				l := r.(*BucketListing)
				require.Len(t, l.Contents, 1)
				assert.Equal(t, int64(1), l.Contents[0].Size)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse([]byte(tt.body), tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, r.Kind())
			tt.check(t, r)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		kind   ResponseKind
		body   string
		reason string
	}{
		{"empty body", KindBucketListing, "  ", "empty body"},
		{"not xml", KindBucketListing, "<<<", ""},
		{"wrong root", KindBucketListing, `<ListVersionsResult></ListVersionsResult>`, ""},
		{"non-numeric size", KindBucketListing, `<ListBucketResult><Contents><Key>k</Key><Size>big</Size></Contents></ListBucketResult>`, `Size "big"`},
		{"missing key", KindBucketListing, `<ListBucketResult><Contents><Size>1</Size></Contents></ListBucketResult>`, "without Key"},
		{"bad truncation flag", KindBucketListing, `<ListBucketResult><IsTruncated>maybe</IsTruncated></ListBucketResult>`, "IsTruncated"},
		{"prefix entry without prefix", KindBucketListing, `<ListBucketResult><CommonPrefixes></CommonPrefixes></ListBucketResult>`, "without Prefix"},
		{"version without id", KindVersionListing, `<ListVersionsResult><Version><Key>k</Key></Version></ListVersionsResult>`, "without VersionId"},
		{"version bad latest", KindVersionListing, `<ListVersionsResult><Version><Key>k</Key><VersionId>1</VersionId><IsLatest>yes</IsLatest></Version></ListVersionsResult>`, "IsLatest"},
		{"part without number", KindPartListing, `<ListPartsResult><Part><Size>1</Size></Part></ListPartsResult>`, "without PartNumber"},
		{"part number not integer", KindPartListing, `<ListPartsResult><Part><PartNumber>x</PartNumber></Part></ListPartsResult>`, "PartNumber"},
		{"initiate without upload id", KindInitiateMultipart, `<InitiateMultipartUploadResult><Key>k</Key></InitiateMultipartUploadResult>`, "missing UploadId"},
		{"copy with foreign root", KindCopyResult, `<Other><ETag>x</ETag></Other>`, "unexpected root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body), tt.kind)
			require.Error(t, err)
			assert.True(t, errors.Is(err, provider.ErrMalformedResponse))

			var mre *MalformedResponseError
			require.ErrorAs(t, err, &mre)
			assert.Equal(t, tt.kind, mre.ResponseKind)
			assert.Equal(t, []byte(tt.body), mre.Body)
			if tt.reason != "" {
				assert.Contains(t, mre.Reason, tt.reason)
			}
		})
	}
}

func TestParse_EmptyOptionalNumbers(t *testing.T) {
	l, err := ParseBucketListing([]byte(`<ListBucketResult><MaxKeys></MaxKeys><Contents><Key>k</Key><Size/></Contents></ListBucketResult>`))
	require.NoError(t, err)
	assert.Equal(t, 0, l.MaxKeys)
	assert.Equal(t, int64(0), l.Contents[0].Size)
}

func TestParse_UnsupportedKind(t *testing.T) {
	_, err := Parse([]byte("<x/>"), ResponseKind(99))
	require.Error(t, err)
	assert.False(t, errors.Is(err, provider.ErrMalformedResponse))
}

func TestIsErrorDocument(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"error", `<?xml version="1.0"?><Error><Code>InternalError</Code></Error>`, true},
		{"error after whitespace", "\n  <Error></Error>", true},
		{"copy result", `<CopyObjectResult></CopyObjectResult>`, false},
		{"empty", "", false},
		{"not xml", "Error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsErrorDocument([]byte(tt.body)))
		})
	}
}

func TestResponseKind_String(t *testing.T) {
	assert.Equal(t, "bucket-listing", KindBucketListing.String())
	assert.Equal(t, "delete-result", KindDeleteResult.String())
	assert.Equal(t, "unknown", ResponseKind(0).String())

	err := &MalformedResponseError{ResponseKind: KindPartListing, Reason: "missing"}
	assert.Equal(t, "malformed part-listing response: missing", err.Error())
}
